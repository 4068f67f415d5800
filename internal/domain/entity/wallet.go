package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const (
	LimitWindowDaily   = "daily"
	LimitWindowMonthly = "monthly"
)

// Wallet - кошелёк пользователя. Held - сумма, зарезервированная под
// заказы, ещё не подтверждённые провайдером.
type Wallet struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Balance           decimal.Decimal
	Held              decimal.Decimal
	Currency          string
	Status            valueobject.WalletStatus
	DailyLimit        *decimal.Decimal
	MonthlyLimit      *decimal.Decimal
	SpentToday        decimal.Decimal
	SpentThisMonth    decimal.Decimal
	LastTransactionAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewWallet(userID uuid.UUID, currency string) *Wallet {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	now := time.Now().UTC()
	return &Wallet{
		ID:             uuid.New(),
		UserID:         userID,
		Balance:        decimal.Zero,
		Held:           decimal.Zero,
		Currency:       currency,
		Status:         valueobject.WalletStatusActive,
		SpentToday:     decimal.Zero,
		SpentThisMonth: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (w *Wallet) Available() decimal.Decimal {
	return valueobject.MaxZero(w.Balance.Sub(w.Held))
}

// RollSpendWindows обнуляет счётчики расходов при переходе через границу
// суток или месяца по UTC.
func (w *Wallet) RollSpendWindows(now time.Time) {
	if w.LastTransactionAt == nil {
		return
	}
	last := w.LastTransactionAt.UTC()
	now = now.UTC()

	if last.Year() != now.Year() || last.Month() != now.Month() {
		w.SpentThisMonth = decimal.Zero
		w.SpentToday = decimal.Zero
		return
	}
	if last.Day() != now.Day() {
		w.SpentToday = decimal.Zero
	}
}

// CheckDebit проверяет, можно ли списать или зарезервировать amount.
// Счётчики должны быть уже актуализированы через RollSpendWindows.
func (w *Wallet) CheckDebit(amount decimal.Decimal) error {
	if !w.Status.CanDebit() {
		return apperror.WalletInactive(string(w.Status))
	}
	if available := w.Available(); available.LessThan(amount) {
		return apperror.InsufficientFunds(amount, available)
	}

	if w.DailyLimit != nil {
		attempted := w.SpentToday.Add(w.Held).Add(amount)
		if attempted.GreaterThan(*w.DailyLimit) {
			return apperror.LimitExceeded(LimitWindowDaily, *w.DailyLimit, attempted)
		}
	}
	if w.MonthlyLimit != nil {
		attempted := w.SpentThisMonth.Add(w.Held).Add(amount)
		if attempted.GreaterThan(*w.MonthlyLimit) {
			return apperror.LimitExceeded(LimitWindowMonthly, *w.MonthlyLimit, attempted)
		}
	}
	return nil
}

func (w *Wallet) CheckCredit() error {
	if !w.Status.CanCredit() {
		return apperror.BusinessLogic("кошелёк закрыт").
			WithDetails(map[string]any{"wallet_status": string(w.Status)})
	}
	return nil
}

func (w *Wallet) ApplyDebit(amount decimal.Decimal, now time.Time) {
	w.Balance = w.Balance.Sub(amount)
	w.addSpent(amount)
	w.touch(now)
}

func (w *Wallet) ApplyCredit(amount decimal.Decimal, now time.Time) {
	w.Balance = w.Balance.Add(amount)
	w.touch(now)
}

// ApplyRefund зачисляет возврат и уменьшает счётчики расходов, не опуская их ниже нуля.
func (w *Wallet) ApplyRefund(amount decimal.Decimal, now time.Time) {
	w.Balance = w.Balance.Add(amount)
	w.SpentToday = valueobject.MaxZero(w.SpentToday.Sub(amount))
	w.SpentThisMonth = valueobject.MaxZero(w.SpentThisMonth.Sub(amount))
	w.touch(now)
}

func (w *Wallet) PlaceHold(amount decimal.Decimal, now time.Time) {
	w.Held = w.Held.Add(amount)
	w.touch(now)
}

// CaptureHold переводит резерв в списание.
func (w *Wallet) CaptureHold(amount decimal.Decimal, now time.Time) {
	w.Held = valueobject.MaxZero(w.Held.Sub(amount))
	w.Balance = w.Balance.Sub(amount)
	w.addSpent(amount)
	w.touch(now)
}

func (w *Wallet) ReleaseHold(amount decimal.Decimal, now time.Time) {
	w.Held = valueobject.MaxZero(w.Held.Sub(amount))
	w.UpdatedAt = now
}

func (w *Wallet) SetStatus(status valueobject.WalletStatus) error {
	if !status.IsValid() {
		return apperror.Validation("некорректный статус кошелька")
	}
	if w.Status == valueobject.WalletStatusClosed && status != valueobject.WalletStatusClosed {
		return apperror.BusinessLogic("закрытый кошелёк нельзя открыть повторно")
	}
	w.Status = status
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// SetLimits задаёт лимиты расходов; nil снимает лимит.
func (w *Wallet) SetLimits(daily, monthly *decimal.Decimal) error {
	if daily != nil && daily.IsNegative() {
		return apperror.Validation("дневной лимит не может быть отрицательным")
	}
	if monthly != nil && monthly.IsNegative() {
		return apperror.Validation("месячный лимит не может быть отрицательным")
	}
	if daily != nil && monthly != nil && daily.GreaterThan(*monthly) {
		return apperror.Validation("дневной лимит не может превышать месячный")
	}
	w.DailyLimit = daily
	w.MonthlyLimit = monthly
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (w *Wallet) addSpent(amount decimal.Decimal) {
	w.SpentToday = w.SpentToday.Add(amount)
	w.SpentThisMonth = w.SpentThisMonth.Add(amount)
}

func (w *Wallet) touch(now time.Time) {
	now = now.UTC()
	w.LastTransactionAt = &now
	w.UpdatedAt = now
}
