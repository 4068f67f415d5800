package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

type OrderRepository struct {
	s *Store
}

func cloneOrder(o entity.Order) *entity.Order {
	o.Metadata = cloneMeta(o.Metadata)
	return &o
}

func (r *OrderRepository) Create(ctx context.Context, o *entity.Order) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.orders[o.ID]; ok {
			return apperror.Conflict("заказ уже существует")
		}
		r.s.orders[o.ID] = *cloneOrder(*o)
		return nil
	})
}

func (r *OrderRepository) Update(ctx context.Context, o *entity.Order) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.orders[o.ID]; !ok {
			return apperror.ErrOrderNotFound
		}
		r.s.orders[o.ID] = *cloneOrder(*o)
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var out *entity.Order
	err := r.s.do(ctx, func() error {
		o, ok := r.s.orders[id]
		if !ok {
			return apperror.ErrOrderNotFound
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	var out []*entity.Order
	total := 0
	err := r.s.do(ctx, func() error {
		var all []entity.Order
		for _, o := range r.s.orders {
			if filter.UserID != nil && o.UserID != *filter.UserID {
				continue
			}
			if filter.Status != nil && o.Status != *filter.Status {
				continue
			}
			all = append(all, o)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
		total = len(all)
		for _, o := range page(all, filter.Limit, filter.Offset) {
			out = append(out, cloneOrder(o))
		}
		return nil
	})
	return out, total, err
}

func (r *OrderRepository) ListActive(ctx context.Context, limit int) ([]*entity.Order, error) {
	var out []*entity.Order
	err := r.s.do(ctx, func() error {
		var all []entity.Order
		for _, o := range r.s.orders {
			if o.Status.IsActive() && o.ProviderOrderID != nil {
				all = append(all, o)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })
		for _, o := range page(all, limit, 0) {
			out = append(out, cloneOrder(o))
		}
		return nil
	})
	return out, err
}

type OrderHistoryRepository struct {
	s *Store
}

func (r *OrderHistoryRepository) Create(ctx context.Context, entry *entity.OrderStatusHistory) error {
	return r.s.do(ctx, func() error {
		r.s.history = append(r.s.history, *entry)
		return nil
	})
}

func (r *OrderHistoryRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.OrderStatusHistory, error) {
	var out []*entity.OrderStatusHistory
	err := r.s.do(ctx, func() error {
		for _, h := range r.s.history {
			if h.OrderID == orderID {
				cp := h
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}
