package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/cache"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// Reader читает каталог через кэш. Любое изменение услуги сбрасывает
// весь кэш каталога. Без кэша чтение идёт напрямую в хранилище.
type Reader struct {
	services repository.ServiceRepository
	cache    *cache.Cache
}

func NewReader(services repository.ServiceRepository, c *cache.Cache) *Reader {
	return &Reader{services: services, cache: c}
}

func (r *Reader) GetService(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	if r.cache == nil {
		return r.services.FindByID(ctx, id)
	}

	v, err := r.cache.GetOrSet(cache.ServiceKey(id), func() (any, error) {
		svc, err := r.services.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return *svc, nil
	})
	if err != nil {
		return nil, err
	}
	svc := v.(entity.Service)
	return &svc, nil
}

func (r *Reader) ListActive(ctx context.Context, tenantID *uuid.UUID, category string) ([]*entity.Service, error) {
	filter := repository.ServiceFilter{TenantID: tenantID, Category: category, ActiveOnly: true}
	if r.cache == nil {
		return r.services.List(ctx, filter)
	}

	v, err := r.cache.GetOrSet(cache.ServiceListKey(tenantID, category), func() (any, error) {
		list, err := r.services.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		values := make([]entity.Service, 0, len(list))
		for _, svc := range list {
			values = append(values, *svc)
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}

	values := v.([]entity.Service)
	out := make([]*entity.Service, 0, len(values))
	for i := range values {
		svc := values[i]
		out = append(out, &svc)
	}
	return out, nil
}

func (r *Reader) Invalidate() {
	if r.cache != nil {
		r.cache.InvalidateByPrefix(cache.CatalogPrefix())
	}
}

type ListServicesUseCase struct {
	reader *Reader
}

func NewListServicesUseCase(reader *Reader) *ListServicesUseCase {
	return &ListServicesUseCase{reader: reader}
}

// Execute возвращает активные услуги, видимые арендатору.
func (uc *ListServicesUseCase) Execute(ctx context.Context, tenantID *uuid.UUID, category string) ([]*entity.Service, error) {
	return uc.reader.ListActive(ctx, tenantID, category)
}

type GetServiceUseCase struct {
	reader *Reader
}

func NewGetServiceUseCase(reader *Reader) *GetServiceUseCase {
	return &GetServiceUseCase{reader: reader}
}

func (uc *GetServiceUseCase) Execute(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID) (*entity.Service, error) {
	svc, err := uc.reader.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.VisibleTo(tenantID) {
		return nil, apperror.ErrServiceNotFound
	}
	return svc, nil
}

// ResolveForOrderUseCase находит активную услугу арендатора и её активного провайдера.
type ResolveForOrderUseCase struct {
	reader    *Reader
	providers repository.ProviderRepository
}

func NewResolveForOrderUseCase(reader *Reader, providers repository.ProviderRepository) *ResolveForOrderUseCase {
	return &ResolveForOrderUseCase{reader: reader, providers: providers}
}

func (uc *ResolveForOrderUseCase) Execute(ctx context.Context, serviceID uuid.UUID, tenantID *uuid.UUID) (*entity.Service, *entity.Provider, error) {
	svc, err := uc.reader.GetService(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	if !svc.IsActive() || !svc.VisibleTo(tenantID) {
		return nil, nil, apperror.ErrServiceNotFound
	}

	provider, err := uc.providers.FindByID(ctx, svc.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	if !provider.IsActive {
		return nil, nil, apperror.ErrProviderNotFound.WithDetails(map[string]any{"provider_id": provider.ID.String()})
	}
	return svc, provider, nil
}

type CreateServiceUseCase struct {
	services  repository.ServiceRepository
	providers repository.ProviderRepository
	reader    *Reader
}

func NewCreateServiceUseCase(services repository.ServiceRepository, providers repository.ProviderRepository, reader *Reader) *CreateServiceUseCase {
	return &CreateServiceUseCase{services: services, providers: providers, reader: reader}
}

func (uc *CreateServiceUseCase) Execute(ctx context.Context, params entity.NewServiceParams) (*entity.Service, error) {
	if _, err := uc.providers.FindByID(ctx, params.ProviderID); err != nil {
		return nil, err
	}
	svc, err := entity.NewService(params)
	if err != nil {
		return nil, err
	}
	if err := uc.services.Create(ctx, svc); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать услугу")
	}
	uc.reader.Invalidate()
	return svc, nil
}

// UpdateServiceUseCase применяет административные изменения услуги.
// Инварианты проверяются при каждом изменении, строка услуги блокируется
// на время чтения и записи.
type UpdateServiceUseCase struct {
	tx       repository.Transactor
	services repository.ServiceRepository
	reader   *Reader
}

func NewUpdateServiceUseCase(tx repository.Transactor, services repository.ServiceRepository, reader *Reader) *UpdateServiceUseCase {
	return &UpdateServiceUseCase{tx: tx, services: services, reader: reader}
}

func (uc *UpdateServiceUseCase) UpdatePricing(ctx context.Context, id uuid.UUID, rate, profit decimal.Decimal) (*entity.Service, error) {
	return uc.mutate(ctx, id, func(s *entity.Service) error {
		return s.UpdatePricing(rate, profit)
	})
}

func (uc *UpdateServiceUseCase) UpdateLimits(ctx context.Context, id uuid.UUID, min, max int64) (*entity.Service, error) {
	return uc.mutate(ctx, id, func(s *entity.Service) error {
		return s.UpdateLimits(min, max)
	})
}

func (uc *UpdateServiceUseCase) SetStatus(ctx context.Context, id uuid.UUID, status valueobject.ServiceStatus) (*entity.Service, error) {
	return uc.mutate(ctx, id, func(s *entity.Service) error {
		s.SetStatus(status)
		return nil
	})
}

func (uc *UpdateServiceUseCase) mutate(ctx context.Context, id uuid.UUID, fn func(s *entity.Service) error) (*entity.Service, error) {
	var svc *entity.Service
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		svc, err = uc.services.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(svc); err != nil {
			return err
		}
		if err := uc.services.Update(ctx, svc); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить услугу")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.reader.Invalidate()
	return svc, nil
}
