package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
)

type OrderStatusHistory struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	FromStatus *valueobject.OrderStatus
	ToStatus   valueobject.OrderStatus
	Reason     string
	ActorID    *uuid.UUID
	CreatedAt  time.Time
}

func NewOrderStatusHistory(orderID uuid.UUID, from *valueobject.OrderStatus, to valueobject.OrderStatus, reason string, actorID *uuid.UUID) *OrderStatusHistory {
	return &OrderStatusHistory{
		ID:         uuid.New(),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	}
}

// HistoryFromChanges превращает список переходов в записи журнала.
func HistoryFromChanges(orderID uuid.UUID, changes []StatusChange, reason string, actorID *uuid.UUID) []*OrderStatusHistory {
	entries := make([]*OrderStatusHistory, 0, len(changes))
	for _, c := range changes {
		from := c.From
		entries = append(entries, NewOrderStatusHistory(orderID, &from, c.To, reason, actorID))
	}
	return entries
}
