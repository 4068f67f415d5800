package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
)

type BalanceResponse struct {
	Balance        decimal.Decimal  `json:"balance"`
	Held           decimal.Decimal  `json:"held"`
	Available      decimal.Decimal  `json:"available"`
	Currency       string           `json:"currency"`
	Status         string           `json:"status"`
	DailyLimit     *decimal.Decimal `json:"daily_limit"`
	MonthlyLimit   *decimal.Decimal `json:"monthly_limit"`
	SpentToday     decimal.Decimal  `json:"spent_today"`
	SpentThisMonth decimal.Decimal  `json:"spent_this_month"`
}

func ToBalanceResponse(b *ledger.Balance) BalanceResponse {
	return BalanceResponse{
		Balance:        b.Balance,
		Held:           b.Held,
		Available:      b.Available,
		Currency:       b.Currency,
		Status:         string(b.Status),
		DailyLimit:     b.DailyLimit,
		MonthlyLimit:   b.MonthlyLimit,
		SpentToday:     b.SpentToday,
		SpentThisMonth: b.SpentThisMonth,
	}
}

type TransactionResponse struct {
	ID           uuid.UUID        `json:"id"`
	Type         string           `json:"type"`
	Amount       decimal.Decimal  `json:"amount"`
	Currency     string           `json:"currency"`
	Status       string           `json:"status"`
	Reference    string           `json:"reference"`
	Description  string           `json:"description"`
	BalanceAfter *decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at"`
}

func ToTransactionResponse(t *entity.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		Currency:     t.Currency,
		Status:       string(t.Status),
		Reference:    t.Reference,
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt,
		CompletedAt:  t.CompletedAt,
	}
}

func ToTransactionResponses(list []*entity.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, ToTransactionResponse(t))
	}
	return out
}

type TransferRequest struct {
	ToUserID    string          `json:"to_user_id" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference" binding:"required"`
	Description string          `json:"description"`
}

// AdjustBalanceRequest - ручное пополнение или списание администратором.
type AdjustBalanceRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference" binding:"required"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
}

type WalletStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type WalletLimitsRequest struct {
	DailyLimit   *decimal.Decimal `json:"daily_limit"`
	MonthlyLimit *decimal.Decimal `json:"monthly_limit"`
}

type ReconcileResponse struct {
	Balance       decimal.Decimal `json:"balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Difference    decimal.Decimal `json:"difference"`
	OK            bool            `json:"ok"`
}

func ToReconcileResponse(r *ledger.ReconcileResult) ReconcileResponse {
	return ReconcileResponse{
		Balance:       r.Balance,
		LedgerBalance: r.LedgerBalance,
		Difference:    r.Difference,
		OK:            r.OK,
	}
}
