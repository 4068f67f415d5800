// Package memstore - реализация репозиториев в памяти. Используется в
// тестах и при STORAGE_DRIVER=memory.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
)

type txKey struct{}

// Store хранит все таблицы и сериализует транзакции одной блокировкой.
// Внутри WithinTx изменения откатываются, если fn вернула ошибку.
type Store struct {
	mu sync.Mutex

	wallets      map[uuid.UUID]entity.Wallet // по user_id
	transactions map[uuid.UUID]entity.Transaction
	orders       map[uuid.UUID]entity.Order
	history      []entity.OrderStatusHistory
	services     map[uuid.UUID]entity.Service
	providers    map[uuid.UUID]entity.Provider
}

func New() *Store {
	return &Store{
		wallets:      make(map[uuid.UUID]entity.Wallet),
		transactions: make(map[uuid.UUID]entity.Transaction),
		orders:       make(map[uuid.UUID]entity.Order),
		services:     make(map[uuid.UUID]entity.Service),
		providers:    make(map[uuid.UUID]entity.Provider),
	}
}

type snapshot struct {
	wallets      map[uuid.UUID]entity.Wallet
	transactions map[uuid.UUID]entity.Transaction
	orders       map[uuid.UUID]entity.Order
	history      []entity.OrderStatusHistory
	services     map[uuid.UUID]entity.Service
	providers    map[uuid.UUID]entity.Provider
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// do выполняет fn под блокировкой, если вызов идёт вне транзакции.
func (s *Store) do(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		wallets:      copyMap(s.wallets),
		transactions: copyMap(s.transactions),
		orders:       copyMap(s.orders),
		history:      append([]entity.OrderStatusHistory(nil), s.history...),
		services:     copyMap(s.services),
		providers:    copyMap(s.providers),
	}
}

func (s *Store) restore(snap snapshot) {
	s.wallets = snap.wallets
	s.transactions = snap.transactions
	s.orders = snap.orders
	s.history = snap.history
	s.services = snap.services
	s.providers = snap.providers
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type Repositories struct {
	Transactor   *Store
	Wallets      *WalletRepository
	Transactions *TransactionRepository
	Orders       *OrderRepository
	History      *OrderHistoryRepository
	Services     *ServiceRepository
	Providers    *ProviderRepository
}

func NewRepositories(s *Store) Repositories {
	return Repositories{
		Transactor:   s,
		Wallets:      &WalletRepository{s: s},
		Transactions: &TransactionRepository{s: s},
		Orders:       &OrderRepository{s: s},
		History:      &OrderHistoryRepository{s: s},
		Services:     &ServiceRepository{s: s},
		Providers:    &ProviderRepository{s: s},
	}
}
