package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
)

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	// FindByIDForUpdate блокирует строку заказа до конца транзакции.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*entity.Order, int, error)
	// ListActive возвращает переданные провайдеру заказы, которые ещё выполняются.
	ListActive(ctx context.Context, limit int) ([]*entity.Order, error)
}

type OrderHistoryRepository interface {
	Create(ctx context.Context, entry *entity.OrderStatusHistory) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.OrderStatusHistory, error)
}

type OrderFilter struct {
	UserID *uuid.UUID
	Status *valueobject.OrderStatus
	Limit  int
	Offset int
}
