package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
)

// Ledger - операции кошелька, которые нужны жизненному циклу заказа.
type Ledger interface {
	Hold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference, description string) (*entity.Transaction, error)
	Capture(ctx context.Context, userID uuid.UUID, reference string) (*entity.Transaction, error)
	Release(ctx context.Context, userID uuid.UUID, reference string) (*entity.Transaction, error)
	Refund(ctx context.Context, e ledger.Entry) (*entity.Transaction, error)
}

// ServiceResolver находит активную услугу арендатора и её провайдера.
type ServiceResolver interface {
	Execute(ctx context.Context, serviceID uuid.UUID, tenantID *uuid.UUID) (*entity.Service, *entity.Provider, error)
}

// Notifier доставляет события владельцу заказа. Реализуется ws.Hub.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// Actor - кто выполняет операцию. Admin видит и меняет любые заказы.
type Actor struct {
	ID    uuid.UUID
	Admin bool
}

func (a Actor) canAccess(o *entity.Order) bool {
	return a.Admin || o.IsOwnedBy(a.ID)
}

func (a Actor) ref() *uuid.UUID {
	id := a.ID
	return &id
}
