package catalog_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/cache"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/catalog"
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

type env struct {
	repos  memstore.Repositories
	reader *catalog.Reader
	prov   *entity.Provider
}

func newEnv(t *testing.T) env {
	t.Helper()
	repos := memstore.NewRepositories(memstore.New())
	c := cache.New(0, time.Minute)

	p := &entity.Provider{ID: uuid.New(), Name: "p", IsActive: true, IsHealthy: true}
	require.NoError(t, repos.Providers.Create(context.Background(), p))

	return env{repos: repos, reader: catalog.NewReader(repos.Services, c), prov: p}
}

func (e env) addService(t *testing.T, tenant *uuid.UUID, providerServiceID string) *entity.Service {
	t.Helper()
	uc := catalog.NewCreateServiceUseCase(e.repos.Services, e.repos.Providers, e.reader)
	svc, err := uc.Execute(context.Background(), entity.NewServiceParams{
		TenantID:          tenant,
		ProviderID:        e.prov.ID,
		ProviderServiceID: providerServiceID,
		Name:              "Followers " + providerServiceID,
		Category:          "instagram",
		Rate:              decimal.RequireFromString("1"),
		Profit:            decimal.RequireFromString("0.5"),
		MinQuantity:       10,
		MaxQuantity:       1000,
	})
	require.NoError(t, err)
	return svc
}

func TestResolveForOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	tenant, other := uuid.New(), uuid.New()

	shared := e.addService(t, nil, "1")
	private := e.addService(t, &tenant, "2")
	resolve := catalog.NewResolveForOrderUseCase(e.reader, e.repos.Providers)

	svc, p, err := resolve.Execute(ctx, shared.ID, &other)
	require.NoError(t, err)
	assert.Equal(t, shared.ID, svc.ID)
	assert.Equal(t, e.prov.ID, p.ID)

	_, _, err = resolve.Execute(ctx, private.ID, &other)
	assert.True(t, apperror.IsNotFound(err))
	_, _, err = resolve.Execute(ctx, private.ID, &tenant)
	assert.NoError(t, err)

	_, _, err = resolve.Execute(ctx, uuid.New(), nil)
	assert.True(t, apperror.IsNotFound(err))

	e.prov.IsActive = false
	require.NoError(t, e.repos.Providers.Update(ctx, e.prov))
	_, _, err = resolve.Execute(ctx, shared.ID, nil)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateService_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.addService(t, nil, "1")

	list := catalog.NewListServicesUseCase(e.reader)
	update := catalog.NewUpdateServiceUseCase(e.repos.Transactor, e.repos.Services, e.reader)

	before, err := list.Execute(ctx, nil, "")
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, "1.5", before[0].SellRate().String())

	_, err = update.UpdatePricing(ctx, svc.ID, decimal.RequireFromString("2"), decimal.RequireFromString("1"))
	require.NoError(t, err)

	after, err := list.Execute(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "3", after[0].SellRate().String())

	_, err = update.UpdateLimits(ctx, svc.ID, 50, 40)
	assert.True(t, apperror.IsValidation(err))

	_, err = update.SetStatus(ctx, svc.ID, valueobject.ServiceStatusDisabled)
	require.NoError(t, err)
	after, err = list.Execute(ctx, nil, "")
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestSyncFromProvider(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	kept := e.addService(t, nil, "1")
	broken := e.addService(t, nil, "2")
	gone := e.addService(t, nil, "3")

	gw := &mockGateway{}
	gw.On("GetServices", mock.Anything, mock.Anything).Return([]entity.ProviderServiceInfo{
		{ServiceID: "1", Rate: decimal.RequireFromString("0.8"), Min: 20, Max: 5000, Refill: true},
		{ServiceID: "2", Rate: decimal.RequireFromString("0.8"), Min: 100, Max: 100},
	}, nil)

	syncUC := catalog.NewSyncFromProviderUseCase(e.repos.Providers, e.repos.Services, gw, e.reader)
	report, err := syncUC.Execute(ctx, e.prov.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Disabled)

	got, _ := e.repos.Services.FindByID(ctx, kept.ID)
	assert.Equal(t, "0.8", got.Rate.String())
	assert.Equal(t, "0.5", got.Profit.String())
	assert.Equal(t, int64(5000), got.MaxQuantity)
	assert.True(t, got.Refill)

	got, _ = e.repos.Services.FindByID(ctx, broken.ID)
	assert.Equal(t, "1", got.Rate.String(), "пропущенная услуга не меняется")

	got, _ = e.repos.Services.FindByID(ctx, gone.ID)
	assert.Equal(t, valueobject.ServiceStatusDisabled, got.Status)
	gw.AssertExpectations(t)
}

func TestUpdateService_ConcurrentEditsKeepBothChanges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.addService(t, nil, "1")
	update := catalog.NewUpdateServiceUseCase(e.repos.Transactor, e.repos.Services, e.reader)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := update.UpdatePricing(ctx, svc.ID, decimal.RequireFromString("2"), decimal.RequireFromString("1"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := update.UpdateLimits(ctx, svc.ID, 20, 2000)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := e.repos.Services.FindByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Rate.String())
	assert.Equal(t, int64(2000), got.MaxQuantity)
}

// flakyServices отказывает на втором и последующих Update.
type flakyServices struct {
	repository.ServiceRepository
	calls int32
}

func (f *flakyServices) Update(ctx context.Context, svc *entity.Service) error {
	if atomic.AddInt32(&f.calls, 1) > 1 {
		return errors.New("connection reset")
	}
	return f.ServiceRepository.Update(ctx, svc)
}

func TestSyncFromProvider_FailureStillInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.addService(t, nil, "1")
	b := e.addService(t, nil, "2")

	// прогреваем кэш
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := e.reader.GetService(ctx, id)
		require.NoError(t, err)
	}

	gw := &mockGateway{}
	gw.On("GetServices", mock.Anything, mock.Anything).Return([]entity.ProviderServiceInfo{
		{ServiceID: "1", Rate: decimal.RequireFromString("0.8"), Min: 20, Max: 5000},
		{ServiceID: "2", Rate: decimal.RequireFromString("0.8"), Min: 20, Max: 5000},
	}, nil)

	syncUC := catalog.NewSyncFromProviderUseCase(e.repos.Providers, &flakyServices{ServiceRepository: e.repos.Services}, gw, e.reader)
	_, err := syncUC.Execute(ctx, e.prov.ID)
	require.Error(t, err)

	updated := 0
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		stored, err := e.repos.Services.FindByID(ctx, id)
		require.NoError(t, err)
		cached, err := e.reader.GetService(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, stored.Rate.String(), cached.Rate.String())
		if stored.Rate.String() == "0.8" {
			updated++
		}
	}
	assert.Equal(t, 1, updated)
}

type fakeKeys struct{}

func (fakeKeys) Encrypt(plaintext string) (string, string, error) {
	return "enc:" + plaintext, "iv", nil
}

func TestCreateProvider(t *testing.T) {
	ctx := context.Background()
	repos := memstore.NewRepositories(memstore.New())
	uc := catalog.NewCreateProviderUseCase(repos.Providers, fakeKeys{})

	_, err := uc.Execute(ctx, catalog.CreateProviderInput{Name: "x", APIURL: "not a url", APIKey: "k"})
	assert.True(t, apperror.IsValidation(err))

	p, err := uc.Execute(ctx, catalog.CreateProviderInput{Name: "JAP", APIURL: "https://provider.example/api/v2", APIKey: "k", RequestsPerMinute: 60})
	require.NoError(t, err)
	assert.Equal(t, "enc:k", p.APIKeyEncrypted)
	assert.True(t, p.IsHealthy)

	list, err := catalog.NewListProvidersUseCase(repos.Providers).Execute(ctx, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
