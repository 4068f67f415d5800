package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
)

type ServiceRepository interface {
	Create(ctx context.Context, service *entity.Service) error
	Update(ctx context.Context, service *entity.Service) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Service, error)
	// FindByIDForUpdate блокирует строку услуги до конца транзакции.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Service, error)
	List(ctx context.Context, filter ServiceFilter) ([]*entity.Service, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*entity.Service, error)
}

type ServiceFilter struct {
	// TenantID ограничивает выборку общими услугами и услугами арендатора.
	TenantID   *uuid.UUID
	Category   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type ProviderRepository interface {
	Create(ctx context.Context, provider *entity.Provider) error
	Update(ctx context.Context, provider *entity.Provider) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Provider, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Provider, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.Provider, error)
}
