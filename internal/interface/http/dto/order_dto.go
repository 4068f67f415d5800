package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/order"
)

type CreateOrderRequest struct {
	ServiceID string  `json:"service_id" binding:"required,uuid"`
	Link      string  `json:"link" binding:"required"`
	Quantity  int64   `json:"quantity" binding:"required,gt=0"`
	Notes     *string `json:"notes"`
}

type CreateOrderResponse struct {
	OrderID         uuid.UUID       `json:"order_id"`
	Status          string          `json:"status"`
	Charge          decimal.Decimal `json:"charge"`
	Currency        string          `json:"currency"`
	Quantity        int64           `json:"quantity"`
	CreatedAt       time.Time       `json:"created_at"`
	ProviderOrderID string          `json:"provider_order_id"`
}

func ToCreateOrderResponse(r *order.CreateOrderResult) CreateOrderResponse {
	return CreateOrderResponse{
		OrderID:         r.OrderID,
		Status:          string(r.Status),
		Charge:          r.Charge,
		Currency:        r.Currency,
		Quantity:        r.Quantity,
		CreatedAt:       r.CreatedAt,
		ProviderOrderID: r.ProviderOrderID,
	}
}

type UpdateOrderStatusRequest struct {
	Status   string         `json:"status" binding:"required"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata"`
}

type UpdateProgressRequest struct {
	StartCount *int64 `json:"start_count"`
	Remains    *int64 `json:"remains"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type RefundOrderRequest struct {
	Reason string `json:"reason"`
}

type OrderResponse struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	ServiceID            uuid.UUID       `json:"service_id"`
	ProviderOrderID      *string         `json:"provider_order_id"`
	Link                 string          `json:"link"`
	Quantity             int64           `json:"quantity"`
	Price                decimal.Decimal `json:"price"`
	RefundedAmount       decimal.Decimal `json:"refunded_amount"`
	Currency             string          `json:"currency"`
	Status               string          `json:"status"`
	StartCount           *int64          `json:"start_count"`
	Remains              *int64          `json:"remains"`
	Notes                *string         `json:"notes"`
	Metadata             map[string]any  `json:"metadata,omitempty"`
	CompletionPercentage float64         `json:"completion_percentage"`
	EstimatedCompletion  *time.Time      `json:"estimated_completion_time"`
	CanBeCancelled       bool            `json:"can_be_cancelled"`
	CanBeRefunded        bool            `json:"can_be_refunded"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	CompletedAt          *time.Time      `json:"completed_at"`
	CancelledAt          *time.Time      `json:"cancelled_at"`
	RefundedAt           *time.Time      `json:"refunded_at"`
}

func ToOrderResponse(v order.View) OrderResponse {
	o := v.Order
	return OrderResponse{
		ID:                   o.ID,
		UserID:               o.UserID,
		ServiceID:            o.ServiceID,
		ProviderOrderID:      o.ProviderOrderID,
		Link:                 o.Link,
		Quantity:             o.Quantity,
		Price:                o.Price,
		RefundedAmount:       o.RefundedAmount,
		Currency:             o.Currency,
		Status:               string(o.Status),
		StartCount:           o.StartCount,
		Remains:              o.Remains,
		Notes:                o.Notes,
		Metadata:             o.Metadata,
		CompletionPercentage: v.CompletionPercentage,
		EstimatedCompletion:  v.EstimatedCompletion,
		CanBeCancelled:       v.CanBeCancelled,
		CanBeRefunded:        v.CanBeRefunded,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		CompletedAt:          o.CompletedAt,
		CancelledAt:          o.CancelledAt,
		RefundedAt:           o.RefundedAt,
	}
}

// ToOrderEntityResponse строит ответ для заказа, только что изменённого операцией.
func ToOrderEntityResponse(o *entity.Order) OrderResponse {
	return ToOrderResponse(order.NewView(o, time.Now()))
}

func ToOrderResponses(views []order.View) []OrderResponse {
	responses := make([]OrderResponse, 0, len(views))
	for _, v := range views {
		responses = append(responses, ToOrderResponse(v))
	}
	return responses
}

type OrderHistoryResponse struct {
	ID         uuid.UUID  `json:"id"`
	FromStatus *string    `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Reason     string     `json:"reason"`
	ActorID    *uuid.UUID `json:"actor_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

func ToOrderHistoryResponses(entries []*entity.OrderStatusHistory) []OrderHistoryResponse {
	out := make([]OrderHistoryResponse, 0, len(entries))
	for _, h := range entries {
		item := OrderHistoryResponse{
			ID:        h.ID,
			ToStatus:  string(h.ToStatus),
			Reason:    h.Reason,
			ActorID:   h.ActorID,
			CreatedAt: h.CreatedAt,
		}
		if h.FromStatus != nil {
			from := string(*h.FromStatus)
			item.FromStatus = &from
		}
		out = append(out, item)
	}
	return out
}
