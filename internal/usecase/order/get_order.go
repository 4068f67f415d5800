package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// View - заказ с вычисляемыми полями для ответа клиенту.
type View struct {
	*entity.Order
	CompletionPercentage float64
	EstimatedCompletion  *time.Time
	CanBeCancelled       bool
	CanBeRefunded        bool
}

func NewView(o *entity.Order, now time.Time) View {
	return View{
		Order:                o,
		CompletionPercentage: o.CompletionPercentage(),
		EstimatedCompletion:  o.EstimatedCompletion(now),
		CanBeCancelled:       o.Status.CanBeCancelled(),
		CanBeRefunded:        o.Status.CanBeRefunded(),
	}
}

type GetOrderUseCase struct {
	orders repository.OrderRepository
}

func NewGetOrderUseCase(orders repository.OrderRepository) *GetOrderUseCase {
	return &GetOrderUseCase{orders: orders}
}

// Execute возвращает заказ. Чужой заказ для не-админа выглядит как несуществующий.
func (uc *GetOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor Actor) (*View, error) {
	o, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(o) {
		return nil, apperror.ErrOrderNotFound
	}
	view := NewView(o, time.Now())
	return &view, nil
}

type ListOrdersInput struct {
	UserID *uuid.UUID
	Status *valueobject.OrderStatus
	Limit  int
	Offset int
}

type ListOrdersUseCase struct {
	orders repository.OrderRepository
}

func NewListOrdersUseCase(orders repository.OrderRepository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orders: orders}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, input ListOrdersInput) ([]View, int, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	if input.Limit > maxListLimit {
		input.Limit = maxListLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	list, total, err := uc.orders.List(ctx, repository.OrderFilter{
		UserID: input.UserID,
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	views := make([]View, 0, len(list))
	for _, o := range list {
		views = append(views, NewView(o, now))
	}
	return views, total, nil
}

type GetOrderHistoryUseCase struct {
	orders  repository.OrderRepository
	history repository.OrderHistoryRepository
}

func NewGetOrderHistoryUseCase(orders repository.OrderRepository, history repository.OrderHistoryRepository) *GetOrderHistoryUseCase {
	return &GetOrderHistoryUseCase{orders: orders, history: history}
}

func (uc *GetOrderHistoryUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor Actor) ([]*entity.OrderStatusHistory, error) {
	o, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(o) {
		return nil, apperror.ErrOrderNotFound
	}
	return uc.history.ListByOrder(ctx, orderID)
}
