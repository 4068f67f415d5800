package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
)

// ServiceResponse - публичное представление услуги. Себестоимость и
// наценка видны только администратору.
type ServiceResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Rate        decimal.Decimal  `json:"rate"`
	MinQuantity int64            `json:"min_quantity"`
	MaxQuantity int64            `json:"max_quantity"`
	DripFeed    bool             `json:"drip_feed"`
	Refill      bool             `json:"refill"`
	Cancel      bool             `json:"cancel"`
	Status      string           `json:"status"`
	ProviderID  *uuid.UUID       `json:"provider_id,omitempty"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Profit      *decimal.Decimal `json:"profit,omitempty"`
}

func ToServiceResponse(s *entity.Service, admin bool) ServiceResponse {
	resp := ServiceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Category:    s.Category,
		Rate:        s.SellRate(),
		MinQuantity: s.MinQuantity,
		MaxQuantity: s.MaxQuantity,
		DripFeed:    s.DripFeed,
		Refill:      s.Refill,
		Cancel:      s.Cancel,
		Status:      string(s.Status),
	}
	if admin {
		providerID, cost, profit := s.ProviderID, s.Rate, s.Profit
		resp.ProviderID = &providerID
		resp.Cost = &cost
		resp.Profit = &profit
	}
	return resp
}

func ToServiceResponses(list []*entity.Service, admin bool) []ServiceResponse {
	out := make([]ServiceResponse, 0, len(list))
	for _, s := range list {
		out = append(out, ToServiceResponse(s, admin))
	}
	return out
}

type CreateServiceRequest struct {
	TenantID          *string         `json:"tenant_id" binding:"omitempty,uuid"`
	ProviderID        string          `json:"provider_id" binding:"required,uuid"`
	ProviderServiceID string          `json:"provider_service_id" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Category          string          `json:"category"`
	Rate              decimal.Decimal `json:"rate"`
	Profit            decimal.Decimal `json:"profit"`
	MinQuantity       int64           `json:"min_quantity"`
	MaxQuantity       int64           `json:"max_quantity"`
	DripFeed          bool            `json:"drip_feed"`
	Refill            bool            `json:"refill"`
	Cancel            bool            `json:"cancel"`
}

type UpdatePricingRequest struct {
	Rate   decimal.Decimal `json:"rate"`
	Profit decimal.Decimal `json:"profit"`
}

type UpdateLimitsRequest struct {
	MinQuantity int64 `json:"min_quantity"`
	MaxQuantity int64 `json:"max_quantity"`
}

type ServiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateProviderRequest struct {
	Name              string `json:"name" binding:"required"`
	APIURL            string `json:"api_url" binding:"required"`
	APIKey            string `json:"api_key" binding:"required"`
	Priority          int    `json:"priority"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// ProviderResponse не содержит ключа API ни в каком виде.
type ProviderResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	APIURL              string     `json:"api_url"`
	Priority            int        `json:"priority"`
	IsActive            bool       `json:"is_active"`
	IsHealthy           bool       `json:"is_healthy"`
	RequestsPerMinute   int        `json:"requests_per_minute"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalOrders         int64      `json:"total_orders"`
	SuccessRate         float64    `json:"success_rate"`
	AvgResponseTimeMs   float64    `json:"avg_response_time_ms"`
	LastCheckAt         *time.Time `json:"last_check_at"`
	LastError           *string    `json:"last_error"`
}

func ToProviderResponse(p *entity.Provider) ProviderResponse {
	return ProviderResponse{
		ID:                  p.ID,
		Name:                p.Name,
		APIURL:              p.APIURL,
		Priority:            p.Priority,
		IsActive:            p.IsActive,
		IsHealthy:           p.IsHealthy,
		RequestsPerMinute:   p.RequestsPerMinute,
		ConsecutiveFailures: p.ConsecutiveFailures,
		TotalOrders:         p.TotalOrders,
		SuccessRate:         p.SuccessRate,
		AvgResponseTimeMs:   p.AvgResponseTimeMs,
		LastCheckAt:         p.LastCheckAt,
		LastError:           p.LastError,
	}
}

func ToProviderResponses(list []*entity.Provider) []ProviderResponse {
	out := make([]ProviderResponse, 0, len(list))
	for _, p := range list {
		out = append(out, ToProviderResponse(p))
	}
	return out
}
