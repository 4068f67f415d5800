package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// Service - услуга каталога. Rate и Profit указаны за 1000 единиц.
type Service struct {
	ID                uuid.UUID
	TenantID          *uuid.UUID
	ProviderID        uuid.UUID
	ProviderServiceID string
	Name              string
	Category          string
	Rate              decimal.Decimal
	Profit            decimal.Decimal
	MinQuantity       int64
	MaxQuantity       int64
	DripFeed          bool
	Refill            bool
	Cancel            bool
	Status            valueobject.ServiceStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type NewServiceParams struct {
	TenantID          *uuid.UUID
	ProviderID        uuid.UUID
	ProviderServiceID string
	Name              string
	Category          string
	Rate              decimal.Decimal
	Profit            decimal.Decimal
	MinQuantity       int64
	MaxQuantity       int64
	DripFeed          bool
	Refill            bool
	Cancel            bool
}

func NewService(p NewServiceParams) (*Service, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, apperror.Validation("название услуги обязательно")
	}
	if p.ProviderServiceID == "" {
		return nil, apperror.Validation("идентификатор услуги у провайдера обязателен")
	}
	if err := validatePricing(p.Rate, p.Profit); err != nil {
		return nil, err
	}
	if err := validateLimits(p.MinQuantity, p.MaxQuantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Service{
		ID:                uuid.New(),
		TenantID:          p.TenantID,
		ProviderID:        p.ProviderID,
		ProviderServiceID: p.ProviderServiceID,
		Name:              strings.TrimSpace(p.Name),
		Category:          p.Category,
		Rate:              p.Rate,
		Profit:            p.Profit,
		MinQuantity:       p.MinQuantity,
		MaxQuantity:       p.MaxQuantity,
		DripFeed:          p.DripFeed,
		Refill:            p.Refill,
		Cancel:            p.Cancel,
		Status:            valueobject.ServiceStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func validatePricing(rate, profit decimal.Decimal) error {
	if !rate.IsPositive() {
		return apperror.Validation("стоимость услуги должна быть положительной")
	}
	if profit.IsNegative() {
		return apperror.Validation("наценка не может быть отрицательной")
	}
	return nil
}

func validateLimits(min, max int64) error {
	if min <= 0 {
		return apperror.Validation("минимальное количество должно быть положительным")
	}
	if max <= min {
		return apperror.Validation("максимальное количество должно быть больше минимального")
	}
	return nil
}

// SellRate - цена продажи за 1000 единиц.
func (s *Service) SellRate() decimal.Decimal {
	return s.Rate.Add(s.Profit)
}

func (s *Service) PriceFor(quantity int64) decimal.Decimal {
	return valueobject.PricePerThousand(s.SellRate(), quantity)
}

func (s *Service) CheckQuantity(quantity int64) error {
	if quantity < s.MinQuantity || quantity > s.MaxQuantity {
		return apperror.ServiceLimitExceeded(s.MinQuantity, s.MaxQuantity, quantity)
	}
	return nil
}

func (s *Service) UpdatePricing(rate, profit decimal.Decimal) error {
	if err := validatePricing(rate, profit); err != nil {
		return err
	}
	s.Rate = rate
	s.Profit = profit
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Service) UpdateLimits(min, max int64) error {
	if err := validateLimits(min, max); err != nil {
		return err
	}
	s.MinQuantity = min
	s.MaxQuantity = max
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Service) SetStatus(status valueobject.ServiceStatus) {
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
}

func (s *Service) IsActive() bool {
	return s.Status == valueobject.ServiceStatusActive
}

// VisibleTo - услуга без арендатора видна всем.
func (s *Service) VisibleTo(tenantID *uuid.UUID) bool {
	if s.TenantID == nil {
		return true
	}
	return tenantID != nil && *s.TenantID == *tenantID
}
