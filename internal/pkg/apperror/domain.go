package apperror

import "github.com/shopspring/decimal"

// Конструкторы доменных ошибок. Суммы кладём в details строками, чтобы
// JSON не терял точность.

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func BusinessLogic(message string) *AppError {
	return New(ErrCodeBusinessLogic, message)
}

func InvalidStatusTransition(from, to string) *AppError {
	return New(ErrCodeInvalidStatusTransition, "недопустимый переход статуса заказа").
		WithDetails(map[string]any{"from": from, "to": to})
}

func InsufficientFunds(required, available decimal.Decimal) *AppError {
	return New(ErrCodeInsufficientFunds, "недостаточно средств на балансе").
		WithDetails(map[string]any{
			"required":  required.StringFixed(2),
			"available": available.StringFixed(2),
		})
}

func WalletInactive(status string) *AppError {
	return New(ErrCodeInsufficientFunds, "кошелёк не активен").
		WithDetails(map[string]any{"wallet_status": status})
}

func LimitExceeded(window string, limit, attempted decimal.Decimal) *AppError {
	return New(ErrCodeLimitExceeded, "превышен лимит расходов").
		WithDetails(map[string]any{
			"window":    window,
			"limit":     limit.StringFixed(2),
			"attempted": attempted.StringFixed(2),
		})
}

func ServiceLimitExceeded(min, max, quantity int64) *AppError {
	return New(ErrCodeServiceLimitExceeded, "количество вне допустимых пределов услуги").
		WithDetails(map[string]any{"min": min, "max": max, "quantity": quantity})
}

func ExternalService(cause error, message string) *AppError {
	return Wrap(cause, ErrCodeExternalService, message)
}

func OrderProcessing(cause error, message string) *AppError {
	return Wrap(cause, ErrCodeOrderProcessing, message)
}

func ReconciliationRequired(cause error, providerOrderID string) *AppError {
	return Wrap(cause, ErrCodeReconciliationRequired, "заказ принят провайдером, но не сохранён; требуется сверка").
		WithDetails(map[string]any{"provider_order_id": providerOrderID})
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}
