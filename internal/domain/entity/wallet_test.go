package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWallet_CheckDebit(t *testing.T) {
	w := entity.NewWallet(uuid.New(), "USD")
	w.Balance = dec("10")
	w.Held = dec("4")

	err := w.CheckDebit(dec("7"))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientFunds(err))

	assert.NoError(t, w.CheckDebit(dec("6")))

	w.Status = valueobject.WalletStatusFrozen
	assert.True(t, apperror.IsInsufficientFunds(w.CheckDebit(dec("1"))))
}

func TestWallet_Limits(t *testing.T) {
	w := entity.NewWallet(uuid.New(), "USD")
	w.Balance = dec("100")
	require.NoError(t, w.SetLimits(decimalPtr("10"), decimalPtr("50")))

	w.SpentToday = dec("8")
	w.SpentThisMonth = dec("8")
	err := w.CheckDebit(dec("3"))
	require.Error(t, err)
	assert.True(t, apperror.IsLimitExceeded(err))

	w.SpentToday = dec("0")
	w.SpentThisMonth = dec("49")
	assert.True(t, apperror.IsLimitExceeded(w.CheckDebit(dec("2"))))
	assert.NoError(t, w.CheckDebit(dec("1")))
}

func TestWallet_SetLimits_Validation(t *testing.T) {
	w := entity.NewWallet(uuid.New(), "USD")
	assert.True(t, apperror.IsValidation(w.SetLimits(decimalPtr("-1"), nil)))
	assert.True(t, apperror.IsValidation(w.SetLimits(decimalPtr("100"), decimalPtr("50"))))
	assert.NoError(t, w.SetLimits(nil, nil))
}

func TestWallet_RollSpendWindows(t *testing.T) {
	w := entity.NewWallet(uuid.New(), "USD")
	last := time.Date(2026, 1, 31, 23, 30, 0, 0, time.UTC)
	w.LastTransactionAt = &last
	w.SpentToday = dec("5")
	w.SpentThisMonth = dec("20")

	w.RollSpendWindows(last.Add(10 * time.Minute))
	assert.Equal(t, "5", w.SpentToday.String())

	w.RollSpendWindows(last.Add(time.Hour))
	assert.True(t, w.SpentToday.IsZero())
	assert.True(t, w.SpentThisMonth.IsZero())
}

func TestWallet_HoldCaptureRelease(t *testing.T) {
	now := time.Now()
	w := entity.NewWallet(uuid.New(), "USD")
	w.Balance = dec("10")

	w.PlaceHold(dec("3"), now)
	assert.Equal(t, "7", w.Available().String())

	w.CaptureHold(dec("3"), now)
	assert.Equal(t, "7", w.Balance.String())
	assert.True(t, w.Held.IsZero())
	assert.Equal(t, "3", w.SpentToday.String())

	w.PlaceHold(dec("2"), now)
	w.ReleaseHold(dec("2"), now)
	assert.Equal(t, "7", w.Available().String())
}

func TestWallet_ApplyRefund_FloorsSpent(t *testing.T) {
	w := entity.NewWallet(uuid.New(), "USD")
	w.SpentToday = dec("1")
	w.SpentThisMonth = dec("4")

	w.ApplyRefund(dec("2"), time.Now())
	assert.Equal(t, "2", w.Balance.String())
	assert.True(t, w.SpentToday.IsZero())
	assert.Equal(t, "2", w.SpentThisMonth.String())
}

func TestWallet_ClosedIsFinal(t *testing.T) {
	w := entity.NewWallet(uuid.New(), "USD")
	require.NoError(t, w.SetStatus(valueobject.WalletStatusClosed))

	assert.Error(t, w.CheckCredit())
	assert.True(t, apperror.IsBusinessLogic(w.SetStatus(valueobject.WalletStatusActive)))
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
