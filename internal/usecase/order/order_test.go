package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/catalog"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/order"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SubmitOrder(ctx context.Context, p *entity.Provider, req entity.ProviderSubmit) (string, error) {
	args := m.Called(ctx, p, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) GetOrderStatus(ctx context.Context, p *entity.Provider, id string) (*entity.ProviderOrderState, error) {
	args := m.Called(ctx, p, id)
	state, _ := args.Get(0).(*entity.ProviderOrderState)
	return state, args.Error(1)
}

func (m *mockGateway) GetBalance(ctx context.Context, p *entity.Provider) (*entity.ProviderBalance, error) {
	args := m.Called(ctx, p)
	bal, _ := args.Get(0).(*entity.ProviderBalance)
	return bal, args.Error(1)
}

func (m *mockGateway) GetServices(ctx context.Context, p *entity.Provider) ([]entity.ProviderServiceInfo, error) {
	args := m.Called(ctx, p)
	list, _ := args.Get(0).([]entity.ProviderServiceInfo)
	return list, args.Error(1)
}

func (m *mockGateway) CancelOrder(ctx context.Context, p *entity.Provider, id string) bool {
	return m.Called(ctx, p, id).Bool(0)
}

func (m *mockGateway) TestConnection(ctx context.Context, p *entity.Provider) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockGateway) BulkStatusCheck(ctx context.Context, p *entity.Provider, ids []string) []entity.BulkStatusItem {
	items, _ := m.Called(ctx, p, ids).Get(0).([]entity.BulkStatusItem)
	return items
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []order.StatusEvent
}

func (n *recordingNotifier) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := data.(order.StatusEvent); ok {
		n.events = append(n.events, e)
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// failingOrders отказывает в сохранении новых заказов.
type failingOrders struct {
	repository.OrderRepository
}

func (failingOrders) Create(ctx context.Context, o *entity.Order) error {
	return errors.New("connection reset")
}

// ctxTransactor отклоняет отменённый контекст так же, как BeginTxx у базы.
type ctxTransactor struct {
	repository.Transactor
}

func (t ctxTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.Transactor.WithinTx(ctx, fn)
}

type env struct {
	repos       memstore.Repositories
	ledger      *ledger.Ledger
	gateway     *mockGateway
	notifier    *recordingNotifier
	transitions *order.Transitions
	create      *order.CreateOrderUseCase
	service     *entity.Service
	user        uuid.UUID
}

func newEnv(t *testing.T, balance string) *env {
	t.Helper()
	ctx := context.Background()
	repos := memstore.NewRepositories(memstore.New())

	p := &entity.Provider{ID: uuid.New(), Name: "provider", IsActive: true, IsHealthy: true}
	require.NoError(t, repos.Providers.Create(ctx, p))

	svc, err := entity.NewService(entity.NewServiceParams{
		ProviderID:        p.ID,
		ProviderServiceID: "101",
		Name:              "Instagram Followers",
		Category:          "instagram",
		Rate:              decimal.RequireFromString("10"),
		Profit:            decimal.RequireFromString("2"),
		MinQuantity:       50,
		MaxQuantity:       10000,
	})
	require.NoError(t, err)
	require.NoError(t, repos.Services.Create(ctx, svc))

	e := &env{
		repos:    repos,
		ledger:   ledger.New(repos.Transactor, repos.Wallets, repos.Transactions, "USD"),
		gateway:  &mockGateway{},
		notifier: &recordingNotifier{},
		service:  svc,
		user:     uuid.New(),
	}
	e.transitions = order.NewTransitions(repos.Transactor, repos.Orders, repos.History, e.ledger, e.notifier)
	e.create = e.newCreate(repos.Orders)

	if balance != "" {
		_, err := e.ledger.Credit(ctx, ledger.Entry{UserID: e.user, Amount: decimal.RequireFromString(balance), Reference: "DEP-1"})
		require.NoError(t, err)
	}
	return e
}

func (e *env) newCreate(orders repository.OrderRepository) *order.CreateOrderUseCase {
	resolver := catalog.NewResolveForOrderUseCase(catalog.NewReader(e.repos.Services, nil), e.repos.Providers)
	return order.NewCreateOrderUseCase(e.repos.Transactor, orders, e.repos.History, resolver, e.ledger, e.gateway, "USD")
}

func (e *env) balance(t *testing.T) *ledger.Balance {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), e.user)
	require.NoError(t, err)
	return b
}

func (e *env) placeOrder(t *testing.T, quantity int64) *order.CreateOrderResult {
	t.Helper()
	e.gateway.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything).Return("23501", nil).Once()
	res, err := e.create.Execute(context.Background(), order.CreateOrderInput{
		UserID:    e.user,
		ServiceID: e.service.ID,
		Link:      "https://instagram.com/acme",
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return res
}

func (e *env) setStatus(t *testing.T, orderID uuid.UUID, statuses ...valueobject.OrderStatus) {
	t.Helper()
	uc := order.NewUpdateOrderStatusUseCase(e.transitions)
	for _, s := range statuses {
		_, err := uc.Execute(context.Background(), order.UpdateOrderStatusInput{OrderID: orderID, Status: s})
		require.NoError(t, err)
	}
}

func (e *env) stored(t *testing.T, id uuid.UUID) *entity.Order {
	t.Helper()
	o, err := e.repos.Orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestCreateOrder_DebitsWallet(t *testing.T) {
	e := newEnv(t, "100.00")

	res := e.placeOrder(t, 1000)
	assert.Equal(t, "12", res.Charge.String())
	assert.Equal(t, valueobject.OrderStatusPending, res.Status)
	assert.Equal(t, "23501", res.ProviderOrderID)

	b := e.balance(t)
	assert.Equal(t, "88", b.Balance.String())
	assert.True(t, b.Held.IsZero())

	entries, total, err := e.ledger.ListTransactions(context.Background(), e.user, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	var debits int
	for _, entry := range entries {
		if entry.Type == valueobject.TransactionTypeOrderDebit {
			debits++
			assert.Equal(t, valueobject.TransactionStatusCompleted, entry.Status)
			assert.Equal(t, "12", entry.Amount.String())
			assert.Equal(t, entity.OrderReference(res.OrderID), entry.Reference)
		}
	}
	assert.Equal(t, 1, debits)

	history, err := e.repos.History.ListByOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)

	e.gateway.AssertCalled(t, "SubmitOrder", mock.Anything, mock.Anything, entity.ProviderSubmit{
		ProviderServiceID: "101",
		Link:              "https://instagram.com/acme",
		Quantity:          1000,
	})
}

func TestCreateOrder_InsufficientFunds(t *testing.T) {
	e := newEnv(t, "5.00")

	_, err := e.create.Execute(context.Background(), order.CreateOrderInput{
		UserID: e.user, ServiceID: e.service.ID, Link: "https://instagram.com/acme", Quantity: 1000,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientFunds(err))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "12.00", appErr.Details["required"])
	assert.Equal(t, "5.00", appErr.Details["available"])

	assert.Equal(t, "5", e.balance(t).Balance.String())
	_, total, err := e.repos.Orders.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	e.gateway.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_ValidationBeforePricing(t *testing.T) {
	e := newEnv(t, "100")
	ctx := context.Background()

	_, err := e.create.Execute(ctx, order.CreateOrderInput{UserID: e.user, ServiceID: e.service.ID, Link: "instagram.com/acme", Quantity: 100})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.create.Execute(ctx, order.CreateOrderInput{UserID: e.user, ServiceID: e.service.ID, Link: "https://x.com/a", Quantity: 0})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.create.Execute(ctx, order.CreateOrderInput{UserID: e.user, ServiceID: e.service.ID, Link: "https://x.com/a", Quantity: 10})
	assert.True(t, apperror.IsServiceLimit(err))

	_, err = e.create.Execute(ctx, order.CreateOrderInput{UserID: e.user, ServiceID: uuid.New(), Link: "https://x.com/a", Quantity: 100})
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, "100", e.balance(t).Balance.String())
	e.gateway.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_ProviderFailureReleasesHold(t *testing.T) {
	e := newEnv(t, "100")
	providerErr := apperror.ExternalService(errors.New("status 400"), "ошибка API провайдера")
	e.gateway.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything).Return("", providerErr)

	_, err := e.create.Execute(context.Background(), order.CreateOrderInput{
		UserID: e.user, ServiceID: e.service.ID, Link: "https://instagram.com/acme", Quantity: 1000,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsOrderProcessing(err))
	assert.True(t, apperror.IsExternalService(errors.Unwrap(err)))

	b := e.balance(t)
	assert.Equal(t, "100", b.Balance.String())
	assert.True(t, b.Held.IsZero())
	assert.True(t, b.SpentToday.IsZero())

	_, total, _ := e.repos.Orders.List(context.Background(), repository.OrderFilter{})
	assert.Zero(t, total)
}

func TestCreateOrder_PersistFailureCancelledAtProvider(t *testing.T) {
	e := newEnv(t, "100")
	create := e.newCreate(failingOrders{e.repos.Orders})
	e.gateway.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything).Return("777", nil)
	e.gateway.On("CancelOrder", mock.Anything, mock.Anything, "777").Return(true)

	_, err := create.Execute(context.Background(), order.CreateOrderInput{
		UserID: e.user, ServiceID: e.service.ID, Link: "https://instagram.com/acme", Quantity: 1000,
	})
	assert.True(t, apperror.IsOrderProcessing(err))

	b := e.balance(t)
	assert.Equal(t, "100", b.Balance.String())
	assert.True(t, b.Held.IsZero())
}

func TestCreateOrder_PersistFailureNeedsReconciliation(t *testing.T) {
	e := newEnv(t, "100")
	create := e.newCreate(failingOrders{e.repos.Orders})
	e.gateway.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything).Return("777", nil)
	e.gateway.On("CancelOrder", mock.Anything, mock.Anything, "777").Return(false)

	_, err := create.Execute(context.Background(), order.CreateOrderInput{
		UserID: e.user, ServiceID: e.service.ID, Link: "https://instagram.com/acme", Quantity: 1000,
	})
	require.True(t, apperror.IsReconciliationRequired(err))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "777", appErr.Details["provider_order_id"])

	b := e.balance(t)
	assert.Equal(t, "100", b.Balance.String())
	assert.Equal(t, "12", b.Held.String(), "резерв остаётся до сверки")
	assert.Equal(t, "88", b.Available.String())
}

func (e *env) newCtxAwareCreate() *order.CreateOrderUseCase {
	tx := ctxTransactor{e.repos.Transactor}
	l := ledger.New(tx, e.repos.Wallets, e.repos.Transactions, "USD")
	resolver := catalog.NewResolveForOrderUseCase(catalog.NewReader(e.repos.Services, nil), e.repos.Providers)
	return order.NewCreateOrderUseCase(tx, e.repos.Orders, e.repos.History, resolver, l, e.gateway, "USD")
}

func TestCreateOrder_ClientGoneDuringSubmitReleasesHold(t *testing.T) {
	e := newEnv(t, "100")
	create := e.newCtxAwareCreate()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.gateway.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	_, err := create.Execute(ctx, order.CreateOrderInput{
		UserID: e.user, ServiceID: e.service.ID, Link: "https://instagram.com/acme", Quantity: 1000,
	})
	assert.True(t, apperror.IsOrderProcessing(err))

	b := e.balance(t)
	assert.Equal(t, "100", b.Balance.String())
	assert.True(t, b.Held.IsZero(), "резерв снят несмотря на отменённый запрос")
}

func TestCreateOrder_ClientGoneAfterAcceptStillCaptures(t *testing.T) {
	e := newEnv(t, "100")
	create := e.newCtxAwareCreate()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.gateway.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("23501", nil)

	res, err := create.Execute(ctx, order.CreateOrderInput{
		UserID: e.user, ServiceID: e.service.ID, Link: "https://instagram.com/acme", Quantity: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPending, e.stored(t, res.OrderID).Status)

	b := e.balance(t)
	assert.Equal(t, "88", b.Balance.String())
	assert.True(t, b.Held.IsZero())
	e.gateway.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProgress_AutoCompletes(t *testing.T) {
	e := newEnv(t, "100")
	res := e.placeOrder(t, 1000)
	e.setStatus(t, res.OrderID, valueobject.OrderStatusProcessing, valueobject.OrderStatusInProgress)

	uc := order.NewUpdateProgressUseCase(e.transitions)
	zero := int64(0)
	o, err := uc.Execute(context.Background(), res.OrderID, nil, &zero, nil)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusCompleted, o.Status)
	require.NotNil(t, o.CompletedAt)

	stored := e.stored(t, res.OrderID)
	assert.Equal(t, valueobject.OrderStatusCompleted, stored.Status)
	assert.Equal(t, int64(0), *stored.Remains)

	events := e.notifier.count()
	_, err = uc.Execute(context.Background(), res.OrderID, nil, &zero, nil)
	require.NoError(t, err)
	assert.Equal(t, events, e.notifier.count(), "повтор ничего не меняет")
}

func TestCompletedOrder_CancelFailsRefundSucceeds(t *testing.T) {
	e := newEnv(t, "100")
	ctx := context.Background()
	res := e.placeOrder(t, 1000)
	e.setStatus(t, res.OrderID, valueobject.OrderStatusProcessing, valueobject.OrderStatusInProgress, valueobject.OrderStatusCompleted)
	assert.Equal(t, "12", e.balance(t).SpentToday.String())

	cancel := order.NewCancelOrderUseCase(e.transitions, e.repos.Providers, e.gateway)
	_, err := cancel.Execute(ctx, res.OrderID, order.Actor{ID: e.user}, "")
	require.Error(t, err)
	assert.True(t, apperror.IsBusinessLogic(err))
	assert.Equal(t, valueobject.OrderStatusCompleted, e.stored(t, res.OrderID).Status)

	admin := uuid.New()
	refund := order.NewRefundOrderUseCase(e.transitions)
	o, err := refund.Execute(ctx, res.OrderID, &admin, "")
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusRefunded, o.Status)
	assert.Equal(t, "12", o.RefundedAmount.String())

	b := e.balance(t)
	assert.Equal(t, "100", b.Balance.String())
	assert.True(t, b.SpentToday.IsZero())
	assert.True(t, b.SpentThisMonth.IsZero())

	_, err = refund.Execute(ctx, res.OrderID, &admin, "")
	assert.True(t, apperror.IsBusinessLogic(err), "повторный возврат запрещён")
	assert.Equal(t, "100", e.balance(t).Balance.String())
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t, "100")
	ctx := context.Background()
	res := e.placeOrder(t, 1000)
	cancel := order.NewCancelOrderUseCase(e.transitions, e.repos.Providers, e.gateway)

	_, err := cancel.Execute(ctx, res.OrderID, order.Actor{ID: uuid.New()}, "")
	assert.True(t, apperror.IsNotFound(err), "чужой заказ не виден")

	e.gateway.On("CancelOrder", mock.Anything, mock.Anything, "23501").Return(false)
	o, err := cancel.Execute(ctx, res.OrderID, order.Actor{ID: e.user}, "ошибся ссылкой")
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusCancelled, o.Status)
	assert.NotNil(t, o.CancelledAt)

	history, err := e.repos.History.ListByOrder(ctx, res.OrderID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	last := history[len(history)-1]
	assert.Equal(t, valueobject.OrderStatusCancelled, last.ToStatus)
	assert.Equal(t, "ошибся ссылкой", last.Reason)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, e.user, *last.ActorID)
	assert.Equal(t, "88", e.balance(t).Balance.String(), "отмена не возвращает средства")
	e.gateway.AssertCalled(t, "CancelOrder", mock.Anything, mock.Anything, "23501")
}

func TestUpdateOrderStatus_RejectsInvalidTransition(t *testing.T) {
	e := newEnv(t, "100")
	res := e.placeOrder(t, 1000)
	uc := order.NewUpdateOrderStatusUseCase(e.transitions)

	_, err := uc.Execute(context.Background(), order.UpdateOrderStatusInput{OrderID: res.OrderID, Status: valueobject.OrderStatusCompleted})
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeInvalidStatusTransition, apperror.Code(err))
	assert.Equal(t, valueobject.OrderStatusPending, e.stored(t, res.OrderID).Status)

	_, err = uc.Execute(context.Background(), order.UpdateOrderStatusInput{OrderID: res.OrderID, Status: "shipped"})
	assert.True(t, apperror.IsValidation(err))

	o, err := uc.Execute(context.Background(), order.UpdateOrderStatusInput{
		OrderID:  res.OrderID,
		Status:   valueobject.OrderStatusPending,
		Metadata: map[string]any{"note": "checked"},
	})
	require.NoError(t, err)
	assert.Equal(t, "checked", o.Metadata["note"])
	assert.Equal(t, "checked", e.stored(t, res.OrderID).Metadata["note"])
}

func TestApplyProviderStatus_PartialRefundsUndelivered(t *testing.T) {
	e := newEnv(t, "100")
	ctx := context.Background()
	res := e.placeOrder(t, 1000)
	apply := order.NewApplyProviderStatusUseCase(e.transitions)

	remains := int64(250)
	o, err := apply.Execute(ctx, res.OrderID, &entity.ProviderOrderState{Status: "Partial", Remains: &remains})
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPartial, o.Status)
	assert.Equal(t, "3", o.RefundedAmount.String())
	assert.Equal(t, "91", e.balance(t).Balance.String())

	history, err := e.repos.History.ListByOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Len(t, history, 4, "создание и три шага вперёд")
	assert.Equal(t, 3, e.notifier.count())

	_, err = apply.Execute(ctx, res.OrderID, &entity.ProviderOrderState{Status: "Partial", Remains: &remains})
	require.NoError(t, err)
	assert.Equal(t, "91", e.balance(t).Balance.String(), "повтор не возвращает дважды")

	refund := order.NewRefundOrderUseCase(e.transitions)
	o, err = refund.Execute(ctx, res.OrderID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "12", o.RefundedAmount.String())
	assert.Equal(t, "100", e.balance(t).Balance.String())
}

func TestApplyProviderStatus_CanceledRefunds(t *testing.T) {
	e := newEnv(t, "100")
	res := e.placeOrder(t, 1000)
	e.setStatus(t, res.OrderID, valueobject.OrderStatusProcessing)

	o, err := order.NewApplyProviderStatusUseCase(e.transitions).Execute(context.Background(), res.OrderID, &entity.ProviderOrderState{Status: "Canceled"})
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusRefunded, o.Status)
	assert.NotNil(t, o.FailedAt)
	assert.NotNil(t, o.RefundedAt)
	assert.Equal(t, "100", e.balance(t).Balance.String())
}

func TestApplyProviderStatus_IgnoresStaleStatus(t *testing.T) {
	e := newEnv(t, "100")
	res := e.placeOrder(t, 1000)
	e.setStatus(t, res.OrderID, valueobject.OrderStatusProcessing, valueobject.OrderStatusInProgress)
	apply := order.NewApplyProviderStatusUseCase(e.transitions)

	o, err := apply.Execute(context.Background(), res.OrderID, &entity.ProviderOrderState{Status: "Pending"})
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusInProgress, o.Status)

	start, remains := int64(3572), int64(400)
	o, err = apply.Execute(context.Background(), res.OrderID, &entity.ProviderOrderState{Status: "Processing", StartCount: &start, Remains: &remains})
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusInProgress, o.Status)
	assert.Equal(t, int64(400), *e.stored(t, res.OrderID).Remains)
	assert.InDelta(t, 60.0, o.CompletionPercentage(), 0.001)
}

func TestGetOrder_View(t *testing.T) {
	e := newEnv(t, "100")
	ctx := context.Background()
	res := e.placeOrder(t, 1000)

	get := order.NewGetOrderUseCase(e.repos.Orders)
	view, err := get.Execute(ctx, res.OrderID, order.Actor{ID: e.user})
	require.NoError(t, err)
	assert.True(t, view.CanBeCancelled)
	assert.False(t, view.CanBeRefunded)
	assert.Nil(t, view.EstimatedCompletion)

	_, err = get.Execute(ctx, res.OrderID, order.Actor{ID: uuid.New()})
	assert.True(t, apperror.IsNotFound(err))
	_, err = get.Execute(ctx, res.OrderID, order.Actor{ID: uuid.New(), Admin: true})
	assert.NoError(t, err)

	list, total, err := order.NewListOrdersUseCase(e.repos.Orders).Execute(ctx, order.ListOrdersInput{UserID: &e.user})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	history, err := order.NewGetOrderHistoryUseCase(e.repos.Orders, e.repos.History).Execute(ctx, res.OrderID, order.Actor{ID: e.user})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
