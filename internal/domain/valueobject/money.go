package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// MoneyScale - число знаков после запятой для сумм в кошельке и заказах.
const MoneyScale = 4

const DefaultCurrency = "USD"

var thousand = decimal.NewFromInt(1000)

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.Validation("сумма не может быть отрицательной")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: RoundMoney(amount), Currency: currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// RoundMoney округляет сумму половиной вверх до MoneyScale знаков.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ValidatePositiveAmount проверяет сумму операции по кошельку.
func ValidatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("сумма должна быть положительной")
	}
	if !RoundMoney(amount).Equal(amount) {
		return apperror.Validation(fmt.Sprintf("сумма допускает не более %d знаков после запятой", MoneyScale))
	}
	return nil
}

// PricePerThousand считает стоимость quantity единиц по цене за тысячу.
func PricePerThousand(ratePerThousand decimal.Decimal, quantity int64) decimal.Decimal {
	return RoundMoney(ratePerThousand.Div(thousand).Mul(decimal.NewFromInt(quantity)))
}

// Proportion возвращает долю total, соответствующую part из whole.
// Используется для частичного возврата за недоставленный объём.
func Proportion(total decimal.Decimal, part, whole int64) decimal.Decimal {
	if whole <= 0 || part <= 0 {
		return decimal.Zero
	}
	if part >= whole {
		return total
	}
	return RoundMoney(total.Mul(decimal.NewFromInt(part)).Div(decimal.NewFromInt(whole)))
}

// MaxZero не даёт сумме уйти ниже нуля.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
