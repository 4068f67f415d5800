package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

type plainKeys struct{}

func (plainKeys) Decrypt(ciphertext, iv string) (string, error) {
	if ciphertext == "broken" {
		return "", errors.New("bad key")
	}
	return ciphertext, nil
}

type fixture struct {
	gateway  *Gateway
	repos    memstore.Repositories
	provider *entity.Provider
	sleeps   *[]time.Duration
}

func newFixture(t *testing.T, handler http.HandlerFunc) fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	repos := memstore.NewRepositories(memstore.New())
	p := &entity.Provider{
		ID:              uuid.New(),
		Name:            "test-provider",
		APIURL:          srv.URL,
		APIKeyEncrypted: "secret-key",
		APIKeyIV:        "iv",
		IsActive:        true,
		IsHealthy:       true,
	}
	require.NoError(t, repos.Providers.Create(context.Background(), p))

	client := NewClient(ClientConfig{Timeout: 2 * time.Second, MaxRetries: 3, RetryBaseDelay: 100 * time.Millisecond})
	var mu sync.Mutex
	sleeps := []time.Duration{}
	client.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return nil
	}

	g := NewGateway(client, plainKeys{}, repos.Providers, repos.Transactor, GatewayConfig{BulkBatchSize: 10, BulkBatchDelay: time.Second})
	return fixture{gateway: g, repos: repos, provider: p, sleeps: &sleeps}
}

func (f fixture) stored(t *testing.T) *entity.Provider {
	t.Helper()
	p, err := f.repos.Providers.FindByID(context.Background(), f.provider.ID)
	require.NoError(t, err)
	return p
}

func TestSubmitOrder_RecoversAfterServerErrors(t *testing.T) {
	var hits int32
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "secret-key", r.PostForm.Get("key"))
		assert.Equal(t, "add", r.PostForm.Get("action"))
		assert.Equal(t, "500", r.PostForm.Get("quantity"))
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"order": 23501}`))
	})

	stored := f.stored(t)
	stored.ConsecutiveFailures = 2
	stored.FailedOrders = 2
	stored.TotalOrders = 2
	require.NoError(t, f.repos.Providers.Update(context.Background(), stored))

	id, err := f.gateway.SubmitOrder(context.Background(), f.provider, entity.ProviderSubmit{
		ProviderServiceID: "1",
		Link:              "https://instagram.com/acme",
		Quantity:          500,
	})
	require.NoError(t, err)
	assert.Equal(t, "23501", id)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *f.sleeps)

	after := f.stored(t)
	assert.Equal(t, 0, after.ConsecutiveFailures)
	assert.True(t, after.IsHealthy)
	assert.Equal(t, int64(1), after.SuccessfulOrders)
	assert.Equal(t, int64(3), after.TotalOrders)
	assert.NotNil(t, after.LastCheckAt)
}

func TestSubmitOrder_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := f.gateway.SubmitOrder(context.Background(), f.provider, entity.ProviderSubmit{ProviderServiceID: "1", Link: "https://x.com/a", Quantity: 10})
	require.Error(t, err)
	assert.True(t, apperror.IsExternalService(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, *f.sleeps)
	assert.Equal(t, 1, f.stored(t).ConsecutiveFailures)
}

func TestSubmitOrder_DeclaredError(t *testing.T) {
	var hits int32
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"error": "Not enough funds on balance"}`))
	})

	_, err := f.gateway.SubmitOrder(context.Background(), f.provider, entity.ProviderSubmit{ProviderServiceID: "1", Link: "https://x.com/a", Quantity: 10})
	require.Error(t, err)
	assert.True(t, apperror.IsExternalService(err))
	assert.Contains(t, err.Error(), "Not enough funds")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "declared_error", appErr.Details["outcome"])
	assert.Equal(t, "Not enough funds on balance", *f.stored(t).LastError)
}

func TestSubmitOrder_ExhaustsRetries(t *testing.T) {
	var hits int32
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.gateway.SubmitOrder(context.Background(), f.provider, entity.ProviderSubmit{ProviderServiceID: "1", Link: "https://x.com/a", Quantity: 10})
	assert.True(t, apperror.IsExternalService(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	after := f.stored(t)
	assert.Equal(t, 1, after.ConsecutiveFailures, "один логический вызов - одна неудача")
	assert.Equal(t, int64(1), after.FailedOrders)
}

func TestSubmitOrder_UndecryptableKey(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос не должен уходить")
	})
	f.provider.APIKeyEncrypted = "broken"

	_, err := f.gateway.SubmitOrder(context.Background(), f.provider, entity.ProviderSubmit{ProviderServiceID: "1", Link: "https://x.com/a", Quantity: 10})
	assert.True(t, apperror.IsExternalService(err))
}

func TestGetOrderStatus_TolerantFields(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"charge": "0.27819", "start_count": 3572, "status": "Partial", "remains": "157", "currency": "USD"}`))
	})

	state, err := f.gateway.GetOrderStatus(context.Background(), f.provider, "23501")
	require.NoError(t, err)
	assert.Equal(t, "Partial", state.Status)
	assert.Equal(t, "0.27819", state.Charge.String())
	assert.Equal(t, int64(3572), *state.StartCount)
	assert.Equal(t, int64(157), *state.Remains)
	assert.Equal(t, "USD", state.Currency)

	after := f.stored(t)
	assert.Zero(t, after.TotalOrders, "опрос статуса не считается заказом")
	assert.NotNil(t, after.LastCheckAt)
}

func TestGetServices(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"service": 1, "name": "Followers", "type": "Default", "category": "First Category", "rate": "0.90", "min": "50", "max": "10000", "refill": true, "cancel": true},
			{"service": "2", "name": "Comments", "type": "Custom Comments", "category": "Second Category", "rate": 8, "min": 10, "max": 1500, "refill": false, "cancel": "1"},
			{"service": 3, "name": "Broken", "rate": "n/a"}
		]`))
	})

	services, err := f.gateway.GetServices(context.Background(), f.provider)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "1", services[0].ServiceID)
	assert.Equal(t, "0.9", services[0].Rate.String())
	assert.Equal(t, int64(50), services[0].Min)
	assert.True(t, services[0].Refill)
	assert.Equal(t, "2", services[1].ServiceID)
	assert.True(t, services[1].Cancel)
}

func TestGetBalance(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balance": "100.84292", "currency": "USD"}`))
	})

	bal, err := f.gateway.GetBalance(context.Background(), f.provider)
	require.NoError(t, err)
	assert.Equal(t, "100.84292", bal.Balance.String())
	assert.NoError(t, f.gateway.TestConnection(context.Background(), f.provider))
}

func TestCancelOrder_SwallowsFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.False(t, f.gateway.CancelOrder(context.Background(), f.provider, "1"))

	ok := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true}`))
	})
	assert.True(t, ok.gateway.CancelOrder(context.Background(), ok.provider, "1"))
}

func TestBulkStatusCheck(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("order") == "bad" {
			_, _ = w.Write([]byte(`{"error": "Incorrect order ID"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status": "In progress", "remains": 10}`))
	})

	ids := make([]string, 0, 25)
	for i := 0; i < 24; i++ {
		ids = append(ids, uuid.NewString())
	}
	ids = append(ids, "bad")

	items := f.gateway.BulkStatusCheck(context.Background(), f.provider, ids)
	require.Len(t, items, 25)
	for i, item := range items[:24] {
		assert.Equal(t, ids[i], item.ProviderOrderID)
		require.NoError(t, item.Err)
		assert.Equal(t, "In progress", item.State.Status)
	}
	assert.Error(t, items[24].Err)
	assert.Nil(t, items[24].State)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *f.sleeps, "пауза между тремя пачками")
}
