package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const serviceColumns = `id, tenant_id, provider_id, provider_service_id, name, category, rate, profit,
	min_quantity, max_quantity, drip_feed, refill, cancel, status, created_at, updated_at`

type serviceRow struct {
	ID                uuid.UUID       `db:"id"`
	TenantID          *uuid.UUID      `db:"tenant_id"`
	ProviderID        uuid.UUID       `db:"provider_id"`
	ProviderServiceID string          `db:"provider_service_id"`
	Name              string          `db:"name"`
	Category          string          `db:"category"`
	Rate              decimal.Decimal `db:"rate"`
	Profit            decimal.Decimal `db:"profit"`
	MinQuantity       int64           `db:"min_quantity"`
	MaxQuantity       int64           `db:"max_quantity"`
	DripFeed          bool            `db:"drip_feed"`
	Refill            bool            `db:"refill"`
	Cancel            bool            `db:"cancel"`
	Status            string          `db:"status"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r serviceRow) toEntity() *entity.Service {
	return &entity.Service{
		ID:                r.ID,
		TenantID:          r.TenantID,
		ProviderID:        r.ProviderID,
		ProviderServiceID: r.ProviderServiceID,
		Name:              r.Name,
		Category:          r.Category,
		Rate:              r.Rate,
		Profit:            r.Profit,
		MinQuantity:       r.MinQuantity,
		MaxQuantity:       r.MaxQuantity,
		DripFeed:          r.DripFeed,
		Refill:            r.Refill,
		Cancel:            r.Cancel,
		Status:            valueobject.ServiceStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type ServiceRepository struct {
	base
}

var _ repository.ServiceRepository = (*ServiceRepository)(nil)

func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{base{db: db}}
}

func (r *ServiceRepository) Create(ctx context.Context, s *entity.Service) error {
	return r.exec(ctx, "не удалось создать услугу", `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, s.ID, s.TenantID, s.ProviderID, s.ProviderServiceID, s.Name, s.Category, s.Rate, s.Profit,
		s.MinQuantity, s.MaxQuantity, s.DripFeed, s.Refill, s.Cancel, string(s.Status), s.CreatedAt, s.UpdatedAt)
}

func (r *ServiceRepository) Update(ctx context.Context, s *entity.Service) error {
	return r.execOne(ctx, apperror.ErrServiceNotFound, `
		UPDATE services
		SET name = $2, category = $3, rate = $4, profit = $5, min_quantity = $6, max_quantity = $7,
		    drip_feed = $8, refill = $9, cancel = $10, status = $11, updated_at = $12
		WHERE id = $1
	`, s.ID, s.Name, s.Category, s.Rate, s.Profit, s.MinQuantity, s.MaxQuantity,
		s.DripFeed, s.Refill, s.Cancel, string(s.Status), s.UpdatedAt)
}

func (r *ServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	var row serviceRow
	if err := r.get(ctx, &row, apperror.ErrServiceNotFound,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *ServiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	var row serviceRow
	if err := r.get(ctx, &row, apperror.ErrServiceNotFound,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *ServiceRepository) List(ctx context.Context, filter repository.ServiceFilter) ([]*entity.Service, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		where = append(where, fmt.Sprintf("(tenant_id IS NULL OR tenant_id = $%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.ActiveOnly {
		args = append(args, string(valueobject.ServiceStatusActive))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + serviceColumns + ` FROM services`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var rows []serviceRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError(err, "не удалось получить услуги")
	}
	return servicesFromRows(rows), nil
}

func (r *ServiceRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*entity.Service, error) {
	var rows []serviceRow
	if err := r.conn(ctx).SelectContext(ctx, &rows,
		`SELECT `+serviceColumns+` FROM services WHERE provider_id = $1`, providerID); err != nil {
		return nil, dbError(err, "не удалось получить услуги провайдера")
	}
	return servicesFromRows(rows), nil
}

func servicesFromRows(rows []serviceRow) []*entity.Service {
	out := make([]*entity.Service, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}

const providerColumns = `id, name, api_url, api_key_encrypted, api_key_iv, priority, is_active,
	requests_per_minute, consecutive_failures, is_healthy, total_orders, successful_orders,
	failed_orders, success_rate, avg_response_time_ms, last_check_at, last_error, created_at, updated_at`

type providerRow struct {
	ID                  uuid.UUID  `db:"id"`
	Name                string     `db:"name"`
	APIURL              string     `db:"api_url"`
	APIKeyEncrypted     string     `db:"api_key_encrypted"`
	APIKeyIV            string     `db:"api_key_iv"`
	Priority            int        `db:"priority"`
	IsActive            bool       `db:"is_active"`
	RequestsPerMinute   int        `db:"requests_per_minute"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	IsHealthy           bool       `db:"is_healthy"`
	TotalOrders         int64      `db:"total_orders"`
	SuccessfulOrders    int64      `db:"successful_orders"`
	FailedOrders        int64      `db:"failed_orders"`
	SuccessRate         float64    `db:"success_rate"`
	AvgResponseTimeMs   float64    `db:"avg_response_time_ms"`
	LastCheckAt         *time.Time `db:"last_check_at"`
	LastError           *string    `db:"last_error"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (r providerRow) toEntity() *entity.Provider {
	p := entity.Provider(r)
	return &p
}

type ProviderRepository struct {
	base
}

var _ repository.ProviderRepository = (*ProviderRepository)(nil)

func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{base{db: db}}
}

func (r *ProviderRepository) Create(ctx context.Context, p *entity.Provider) error {
	return r.exec(ctx, "не удалось создать провайдера", `
		INSERT INTO providers (`+providerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, p.ID, p.Name, p.APIURL, p.APIKeyEncrypted, p.APIKeyIV, p.Priority, p.IsActive,
		p.RequestsPerMinute, p.ConsecutiveFailures, p.IsHealthy, p.TotalOrders, p.SuccessfulOrders,
		p.FailedOrders, p.SuccessRate, p.AvgResponseTimeMs, p.LastCheckAt, p.LastError, p.CreatedAt, p.UpdatedAt)
}

func (r *ProviderRepository) Update(ctx context.Context, p *entity.Provider) error {
	return r.execOne(ctx, apperror.ErrProviderNotFound, `
		UPDATE providers
		SET name = $2, api_url = $3, api_key_encrypted = $4, api_key_iv = $5, priority = $6,
		    is_active = $7, requests_per_minute = $8, consecutive_failures = $9, is_healthy = $10,
		    total_orders = $11, successful_orders = $12, failed_orders = $13, success_rate = $14,
		    avg_response_time_ms = $15, last_check_at = $16, last_error = $17, updated_at = $18
		WHERE id = $1
	`, p.ID, p.Name, p.APIURL, p.APIKeyEncrypted, p.APIKeyIV, p.Priority, p.IsActive,
		p.RequestsPerMinute, p.ConsecutiveFailures, p.IsHealthy, p.TotalOrders, p.SuccessfulOrders,
		p.FailedOrders, p.SuccessRate, p.AvgResponseTimeMs, p.LastCheckAt, p.LastError, p.UpdatedAt)
}

func (r *ProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	var row providerRow
	if err := r.get(ctx, &row, apperror.ErrProviderNotFound,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *ProviderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	var row providerRow
	if err := r.get(ctx, &row, apperror.ErrProviderNotFound,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *ProviderRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY priority DESC, name`

	var rows []providerRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, query); err != nil {
		return nil, dbError(err, "не удалось получить провайдеров")
	}
	out := make([]*entity.Provider, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
