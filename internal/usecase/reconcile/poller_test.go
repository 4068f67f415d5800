package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/order"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/reconcile"
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

type staleHolds struct {
	holds []*entity.Transaction
}

func (s staleHolds) StaleHolds(ctx context.Context, olderThan time.Duration, limit int) ([]*entity.Transaction, error) {
	return s.holds, nil
}

func seedOrder(t *testing.T, repos memstore.Repositories, userID, providerID uuid.UUID, providerOrderID string) *entity.Order {
	t.Helper()
	svc := &entity.Service{ID: uuid.New(), ProviderID: providerID}
	o, err := entity.NewOrder(userID, svc, "https://instagram.com/acme", 1000, decimal.RequireFromString("12"), "USD")
	require.NoError(t, err)
	o.SetProviderOrderID(providerOrderID)
	require.NoError(t, repos.Orders.Create(context.Background(), o))
	return o
}

func newPoller(t *testing.T, holds reconcile.HoldReporter) (*reconcile.Poller, memstore.Repositories, *mockGateway, *ledger.Ledger) {
	t.Helper()
	repos := memstore.NewRepositories(memstore.New())
	l := ledger.New(repos.Transactor, repos.Wallets, repos.Transactions, "USD")
	transitions := order.NewTransitions(repos.Transactor, repos.Orders, repos.History, l, nil)
	gw := &mockGateway{}
	p := reconcile.NewPoller(repos.Orders, repos.Providers, gw, order.NewApplyProviderStatusUseCase(transitions), holds, reconcile.Config{Schedule: "@every 1h"})
	return p, repos, gw, l
}

func TestRunOnce_AppliesProviderStatuses(t *testing.T) {
	ctx := context.Background()
	p, repos, gw, l := newPoller(t, staleHolds{holds: []*entity.Transaction{{Reference: "ORDER-x", Amount: decimal.NewFromInt(5)}}})

	active := &entity.Provider{ID: uuid.New(), Name: "active", IsActive: true}
	disabled := &entity.Provider{ID: uuid.New(), Name: "disabled"}
	require.NoError(t, repos.Providers.Create(ctx, active))
	require.NoError(t, repos.Providers.Create(ctx, disabled))

	user := uuid.New()
	done := seedOrder(t, repos, user, active.ID, "1")
	partial := seedOrder(t, repos, user, active.ID, "2")
	broken := seedOrder(t, repos, user, active.ID, "3")
	skipped := seedOrder(t, repos, user, disabled.ID, "4")

	zero, rest := int64(0), int64(500)
	gw.On("BulkStatusCheck", mock.Anything, mock.MatchedBy(func(p *entity.Provider) bool { return p.ID == active.ID }), mock.Anything).
		Return([]entity.BulkStatusItem{
			{ProviderOrderID: "1", State: &entity.ProviderOrderState{ProviderOrderID: "1", Status: "Completed", Remains: &zero}},
			{ProviderOrderID: "2", State: &entity.ProviderOrderState{ProviderOrderID: "2", Status: "Partial", Remains: &rest}},
			{ProviderOrderID: "3", Err: errors.New("timeout")},
		})

	report, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.StaleHolds)

	got, _ := repos.Orders.FindByID(ctx, done.ID)
	assert.Equal(t, valueobject.OrderStatusCompleted, got.Status)

	got, _ = repos.Orders.FindByID(ctx, partial.ID)
	assert.Equal(t, valueobject.OrderStatusPartial, got.Status)
	assert.Equal(t, "6", got.RefundedAmount.String())

	bal, err := l.GetBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "6", bal.Balance.String())

	got, _ = repos.Orders.FindByID(ctx, broken.ID)
	assert.Equal(t, valueobject.OrderStatusPending, got.Status)
	got, _ = repos.Orders.FindByID(ctx, skipped.ID)
	assert.Equal(t, valueobject.OrderStatusPending, got.Status)

	gw.AssertNumberOfCalls(t, "BulkStatusCheck", 1)
}

func TestRunOnce_NoActiveOrders(t *testing.T) {
	p, _, gw, _ := newPoller(t, nil)

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	gw.AssertNotCalled(t, "BulkStatusCheck", mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	repos := memstore.NewRepositories(memstore.New())
	p := reconcile.NewPoller(repos.Orders, repos.Providers, &mockGateway{}, nil, nil, reconcile.Config{Schedule: "every minute"})
	assert.Error(t, p.Start())

	ok, _, _, _ := newPoller(t, nil)
	require.NoError(t, ok.Start())
	ok.Stop()
}
