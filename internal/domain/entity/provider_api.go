package entity

import "github.com/shopspring/decimal"

// ProviderSubmit - заявка на создание заказа у провайдера.
type ProviderSubmit struct {
	ProviderServiceID string
	Link              string
	Quantity          int64
}

// ProviderOrderState - состояние заказа по данным провайдера.
type ProviderOrderState struct {
	ProviderOrderID string
	Status          string
	Charge          *decimal.Decimal
	StartCount      *int64
	Remains         *int64
	Currency        string
}

type ProviderBalance struct {
	Balance  decimal.Decimal
	Currency string
}

// ProviderServiceInfo - строка из списка услуг провайдера.
type ProviderServiceInfo struct {
	ServiceID string
	Name      string
	Type      string
	Category  string
	Rate      decimal.Decimal
	Min       int64
	Max       int64
	DripFeed  bool
	Refill    bool
	Cancel    bool
}

// BulkStatusItem - результат проверки одного заказа в пакетном запросе.
// Ошибка по одному заказу не прерывает пакет.
type BulkStatusItem struct {
	ProviderOrderID string
	State           *ProviderOrderState
	Err             error
}
