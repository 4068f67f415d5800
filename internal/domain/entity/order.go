package entity

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const (
	orderReferencePrefix   = "ORDER-"
	refundReferencePrefix  = "REFUND-"
	partialReferencePrefix = "PARTIAL-"
)

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	ServiceID       uuid.UUID
	ProviderID      uuid.UUID
	ProviderOrderID *string
	Link            string
	Quantity        int64
	Price           decimal.Decimal
	RefundedAmount  decimal.Decimal
	Currency        string
	Status          valueobject.OrderStatus
	Priority        int
	StartCount      *int64
	Remains         *int64
	Notes           *string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	FailedAt        *time.Time
	CancelledAt     *time.Time
	RefundedAt      *time.Time
}

// StatusChange - один применённый переход заказа.
type StatusChange struct {
	From valueobject.OrderStatus
	To   valueobject.OrderStatus
}

// ValidateLink принимает только абсолютные http(s) ссылки.
func ValidateLink(link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return apperror.Validation("ссылка обязательна")
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperror.Validation("ссылка должна быть абсолютным http(s) URL")
	}
	return nil
}

func ValidateQuantity(quantity int64) error {
	if quantity <= 0 {
		return apperror.Validation("количество должно быть положительным")
	}
	return nil
}

// NewOrder создаёт заказ в статусе pending. Цена фиксируется при создании.
func NewOrder(userID uuid.UUID, service *Service, link string, quantity int64, price decimal.Decimal, currency string) (*Order, error) {
	if err := ValidateLink(link); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	now := time.Now().UTC()
	return &Order{
		ID:             uuid.New(),
		UserID:         userID,
		ServiceID:      service.ID,
		ProviderID:     service.ProviderID,
		Link:           strings.TrimSpace(link),
		Quantity:       quantity,
		Price:          price,
		RefundedAmount: decimal.Zero,
		Currency:       currency,
		Status:         valueobject.OrderStatusPending,
		Metadata:       map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func OrderReference(orderID uuid.UUID) string {
	return orderReferencePrefix + orderID.String()
}

func RefundReference(orderID uuid.UUID) string {
	return refundReferencePrefix + orderID.String()
}

func PartialRefundReference(orderID uuid.UUID) string {
	return partialReferencePrefix + orderID.String()
}

// TransitionTo проверяет переход по таблице и проставляет временные метки.
func (o *Order) TransitionTo(status valueobject.OrderStatus, now time.Time) (StatusChange, error) {
	if !o.Status.CanTransitionTo(status) {
		return StatusChange{}, apperror.InvalidStatusTransition(string(o.Status), string(status))
	}
	now = now.UTC()
	change := StatusChange{From: o.Status, To: status}

	switch status {
	case valueobject.OrderStatusCompleted:
		o.CompletedAt = &now
		zero := int64(0)
		o.Remains = &zero
	case valueobject.OrderStatusFailed:
		o.FailedAt = &now
	case valueobject.OrderStatusCancelled:
		o.CancelledAt = &now
	case valueobject.OrderStatusRefunded:
		o.RefundedAt = &now
	}

	o.Status = status
	o.UpdatedAt = now
	return change, nil
}

// AdvanceTo продвигает заказ вперёд по основному пути, проходя каждое
// промежуточное ребро таблицы. Если target позади текущего статуса,
// возвращает пустой список.
func (o *Order) AdvanceTo(target valueobject.OrderStatus, now time.Time) ([]StatusChange, error) {
	if o.Status == target {
		return nil, nil
	}
	path := o.Status.ForwardPath(target)
	if path == nil {
		return nil, nil
	}

	changes := make([]StatusChange, 0, len(path))
	for _, step := range path {
		change, err := o.TransitionTo(step, now)
		if err != nil {
			return changes, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// UpdateProgress сохраняет прогресс от провайдера. remains зажимается в
// [0, quantity]; при remains == 0 заказ в processing/in_progress завершается.
// Повтор тех же значений ничего не меняет.
func (o *Order) UpdateProgress(startCount, remains *int64, now time.Time) (bool, []StatusChange, error) {
	changed := false

	if startCount != nil && (o.StartCount == nil || *o.StartCount != *startCount) {
		v := *startCount
		o.StartCount = &v
		changed = true
	}

	if remains != nil {
		v := *remains
		if v < 0 {
			v = 0
		}
		if v > o.Quantity {
			v = o.Quantity
		}
		if o.Remains == nil || *o.Remains != v {
			o.Remains = &v
			changed = true
		}
	}

	var changes []StatusChange
	if o.Remains != nil && *o.Remains == 0 &&
		(o.Status == valueobject.OrderStatusProcessing || o.Status == valueobject.OrderStatusInProgress) {
		var err error
		changes, err = o.AdvanceTo(valueobject.OrderStatusCompleted, now)
		if err != nil {
			return changed, changes, err
		}
	}

	if changed || len(changes) > 0 {
		o.UpdatedAt = now.UTC()
	}
	return changed || len(changes) > 0, changes, nil
}

func (o *Order) CompletionPercentage() float64 {
	if o.Quantity <= 0 {
		return 0
	}
	if o.Status == valueobject.OrderStatusCompleted {
		return 100
	}
	if o.Remains == nil {
		return 0
	}
	pct := float64(o.Quantity-*o.Remains) / float64(o.Quantity) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// EstimatedCompletion линейно экстраполирует время завершения от CreatedAt.
func (o *Order) EstimatedCompletion(now time.Time) *time.Time {
	pct := o.CompletionPercentage()
	if pct <= 0 || o.Status.IsFinished() {
		return nil
	}
	elapsed := now.Sub(o.CreatedAt)
	if elapsed <= 0 {
		return nil
	}
	total := time.Duration(float64(elapsed) * 100 / pct)
	eta := o.CreatedAt.Add(total).UTC()
	return &eta
}

// UndeliveredShare - доля цены за недоставленный объём.
func (o *Order) UndeliveredShare() decimal.Decimal {
	if o.Remains == nil {
		return decimal.Zero
	}
	return valueobject.Proportion(o.Price, *o.Remains, o.Quantity)
}

func (o *Order) RefundableAmount() decimal.Decimal {
	return valueobject.MaxZero(o.Price.Sub(o.RefundedAmount))
}

func (o *Order) AddRefunded(amount decimal.Decimal) {
	o.RefundedAmount = o.RefundedAmount.Add(amount)
}

func (o *Order) SetProviderOrderID(id string) {
	o.ProviderOrderID = &id
}

func (o *Order) MergeMetadata(metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	if o.Metadata == nil {
		o.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		o.Metadata[k] = v
	}
}

func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}
