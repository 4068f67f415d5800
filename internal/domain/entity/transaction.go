package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// Transaction - запись журнала кошелька. После перехода из pending не меняется.
type Transaction struct {
	ID           uuid.UUID
	WalletID     uuid.UUID
	UserID       uuid.UUID
	Type         valueobject.TransactionType
	Amount       decimal.Decimal
	Currency     string
	Status       valueobject.TransactionStatus
	Reference    string
	Description  string
	Metadata     map[string]any
	BalanceAfter *decimal.Decimal
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

func NewTransaction(wallet *Wallet, txType valueobject.TransactionType, amount decimal.Decimal, reference, description string) (*Transaction, error) {
	if !txType.IsValid() {
		return nil, apperror.Validation("некорректный тип операции")
	}
	if err := valueobject.ValidatePositiveAmount(amount); err != nil {
		return nil, err
	}
	if reference == "" {
		reference = fmt.Sprintf("%s-%s", txType, uuid.NewString())
	}

	return &Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		UserID:      wallet.UserID,
		Type:        txType,
		Amount:      amount,
		Currency:    wallet.Currency,
		Status:      valueobject.TransactionStatusPending,
		Reference:   reference,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (t *Transaction) Complete(balanceAfter decimal.Decimal, now time.Time) error {
	if t.Status != valueobject.TransactionStatusPending {
		return apperror.BusinessLogic("операция уже проведена")
	}
	now = now.UTC()
	t.Status = valueobject.TransactionStatusCompleted
	t.BalanceAfter = &balanceAfter
	t.CompletedAt = &now
	return nil
}

func (t *Transaction) Fail(now time.Time) error {
	if t.Status != valueobject.TransactionStatusPending {
		return apperror.BusinessLogic("операция уже проведена")
	}
	now = now.UTC()
	t.Status = valueobject.TransactionStatusFailed
	t.CompletedAt = &now
	return nil
}

// Matches сообщает, совпадает ли повтор по reference с исходной операцией.
func (t *Transaction) Matches(txType valueobject.TransactionType, amount decimal.Decimal) bool {
	return t.Type == txType && t.Amount.Equal(amount)
}

// Signed возвращает сумму со знаком: кредит положителен, дебет отрицателен.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t *Transaction) IsCompleted() bool {
	return t.Status == valueobject.TransactionStatusCompleted
}

func (t *Transaction) IsPending() bool {
	return t.Status == valueobject.TransactionStatusPending
}
