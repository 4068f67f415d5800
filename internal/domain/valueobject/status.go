package valueobject

import (
	"strings"

	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusPartial    OrderStatus = "partial"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusProcessing: {OrderStatusInProgress, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusPartial, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusCompleted:  {OrderStatusRefunded},
	OrderStatusPartial:    {OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusFailed:     {OrderStatusPending, OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// forwardRank задаёт порядок продвижения заказа у провайдера.
var forwardRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusInProgress: 2,
	OrderStatusPartial:    3,
	OrderStatusCompleted:  3,
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	for _, status := range orderTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// CanBeCancelled - отмена допустима только до завершения выполнения.
func (s OrderStatus) CanBeCancelled() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusInProgress, OrderStatusPartial:
		return true
	}
	return false
}

func (s OrderStatus) CanBeRefunded() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusPartial, OrderStatusFailed:
		return true
	}
	return false
}

// IsFinished - заказ больше не выполняется провайдером.
func (s OrderStatus) IsFinished() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusPartial, OrderStatusCancelled, OrderStatusFailed, OrderStatusRefunded:
		return true
	}
	return false
}

// IsActive - заказ нужно опрашивать у провайдера.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusInProgress:
		return true
	}
	return false
}

// ForwardPath строит цепочку допустимых переходов от s к target вдоль
// основного пути pending → processing → in_progress → completed/partial.
// Возвращает nil, если target не впереди s.
func (s OrderStatus) ForwardPath(target OrderStatus) []OrderStatus {
	from, okFrom := forwardRank[s]
	to, okTo := forwardRank[target]
	if !okFrom || !okTo || to <= from {
		if s == OrderStatusPartial && target == OrderStatusCompleted {
			return []OrderStatus{OrderStatusCompleted}
		}
		return nil
	}

	chain := []OrderStatus{OrderStatusProcessing, OrderStatusInProgress}
	var path []OrderStatus
	for _, step := range chain {
		if forwardRank[step] > from && forwardRank[step] < to {
			path = append(path, step)
		}
	}
	return append(path, target)
}

func ActiveOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusInProgress}
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус заказа")
	}
	return s, nil
}

// ProviderOrderCancelled - внутренний маркер отмены заказа на стороне провайдера.
const ProviderOrderCancelled OrderStatus = "provider_cancelled"

// ParseProviderStatus переводит статус из ответа провайдера во внутренний.
func ParseProviderStatus(raw string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return OrderStatusPending, true
	case "processing":
		return OrderStatusProcessing, true
	case "in progress", "in_progress", "inprogress":
		return OrderStatusInProgress, true
	case "completed", "complete":
		return OrderStatusCompleted, true
	case "partial":
		return OrderStatusPartial, true
	case "canceled", "cancelled", "refunded":
		return ProviderOrderCancelled, true
	case "fail", "failed", "error":
		return OrderStatusFailed, true
	}
	return "", false
}

type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusFrozen    WalletStatus = "frozen"
	WalletStatusClosed    WalletStatus = "closed"
)

func (s WalletStatus) IsValid() bool {
	switch s {
	case WalletStatusActive, WalletStatusSuspended, WalletStatusFrozen, WalletStatusClosed:
		return true
	}
	return false
}

func (s WalletStatus) CanDebit() bool {
	return s == WalletStatusActive
}

// CanCredit - пополнения разрешены везде, кроме закрытого кошелька.
func (s WalletStatus) CanCredit() bool {
	return s != WalletStatusClosed
}

func NewWalletStatus(status string) (WalletStatus, error) {
	s := WalletStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус кошелька")
	}
	return s, nil
}

type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeOrderDebit  TransactionType = "order-debit"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypeBonus       TransactionType = "bonus"
	TransactionTypePenalty     TransactionType = "penalty"
	TransactionTypeTransferIn  TransactionType = "transfer-in"
	TransactionTypeTransferOut TransactionType = "transfer-out"
)

func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeRefund, TransactionTypeBonus, TransactionTypeTransferIn:
		return true
	}
	return false
}

func (t TransactionType) IsDebit() bool {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypeOrderDebit, TransactionTypePenalty, TransactionTypeTransferOut:
		return true
	}
	return false
}

func (t TransactionType) IsValid() bool {
	return t.IsCredit() || t.IsDebit()
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type ServiceStatus string

const (
	ServiceStatusActive   ServiceStatus = "active"
	ServiceStatusDisabled ServiceStatus = "disabled"
)

func NewServiceStatus(status string) (ServiceStatus, error) {
	s := ServiceStatus(status)
	if s != ServiceStatusActive && s != ServiceStatusDisabled {
		return "", apperror.Validation("некорректный статус услуги")
	}
	return s, nil
}
