package entity

import (
	"time"

	"github.com/google/uuid"
)

// UnhealthyAfterFailures - после стольких неудач подряд провайдер считается нездоровым.
const UnhealthyAfterFailures = 3

type Provider struct {
	ID                  uuid.UUID
	Name                string
	APIURL              string
	APIKeyEncrypted     string
	APIKeyIV            string
	Priority            int
	IsActive            bool
	RequestsPerMinute   int
	ConsecutiveFailures int
	IsHealthy           bool
	TotalOrders         int64
	SuccessfulOrders    int64
	FailedOrders        int64
	SuccessRate         float64
	AvgResponseTimeMs   float64
	LastCheckAt         *time.Time
	LastError           *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RecordSuccess учитывает успешный вызов API и сбрасывает счётчик неудач.
// Счётчики заказов и среднее время ответа меняются только для передачи
// заказа (order == true), опрос статусов и баланса в них не попадает.
func (p *Provider) RecordSuccess(latency time.Duration, order bool, now time.Time) {
	if order {
		p.TotalOrders++
		p.SuccessfulOrders++

		sample := float64(latency.Milliseconds())
		n := float64(p.SuccessfulOrders)
		p.AvgResponseTimeMs = (p.AvgResponseTimeMs*(n-1) + sample) / n
	}

	p.ConsecutiveFailures = 0
	p.IsHealthy = true
	p.LastError = nil
	p.recomputeRate(now)
}

func (p *Provider) RecordFailure(reason string, order bool, now time.Time) {
	if order {
		p.TotalOrders++
		p.FailedOrders++
	}
	p.ConsecutiveFailures++
	if p.ConsecutiveFailures >= UnhealthyAfterFailures {
		p.IsHealthy = false
	}
	if reason != "" {
		p.LastError = &reason
	}
	p.recomputeRate(now)
}

func (p *Provider) recomputeRate(now time.Time) {
	if p.TotalOrders > 0 {
		p.SuccessRate = float64(p.SuccessfulOrders) / float64(p.TotalOrders) * 100
	}
	now = now.UTC()
	p.LastCheckAt = &now
	p.UpdatedAt = now
}
