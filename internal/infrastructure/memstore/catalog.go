package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

type ServiceRepository struct {
	s *Store
}

func (r *ServiceRepository) Create(ctx context.Context, svc *entity.Service) error {
	return r.s.do(ctx, func() error {
		r.s.services[svc.ID] = *svc
		return nil
	})
}

func (r *ServiceRepository) Update(ctx context.Context, svc *entity.Service) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.services[svc.ID]; !ok {
			return apperror.ErrServiceNotFound
		}
		r.s.services[svc.ID] = *svc
		return nil
	})
}

func (r *ServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	var out *entity.Service
	err := r.s.do(ctx, func() error {
		svc, ok := r.s.services[id]
		if !ok {
			return apperror.ErrServiceNotFound
		}
		out = &svc
		return nil
	})
	return out, err
}

func (r *ServiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Service, error) {
	return r.FindByID(ctx, id)
}

func (r *ServiceRepository) List(ctx context.Context, filter repository.ServiceFilter) ([]*entity.Service, error) {
	var out []*entity.Service
	err := r.s.do(ctx, func() error {
		var all []entity.Service
		for _, svc := range r.s.services {
			if filter.ActiveOnly && !svc.IsActive() {
				continue
			}
			if filter.Category != "" && svc.Category != filter.Category {
				continue
			}
			if filter.TenantID != nil && !svc.VisibleTo(filter.TenantID) {
				continue
			}
			all = append(all, svc)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].Category != all[j].Category {
				return all[i].Category < all[j].Category
			}
			return all[i].Name < all[j].Name
		})
		for _, svc := range page(all, filter.Limit, filter.Offset) {
			cp := svc
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r *ServiceRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*entity.Service, error) {
	var out []*entity.Service
	err := r.s.do(ctx, func() error {
		for _, svc := range r.s.services {
			if svc.ProviderID == providerID {
				cp := svc
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

type ProviderRepository struct {
	s *Store
}

func (r *ProviderRepository) Create(ctx context.Context, p *entity.Provider) error {
	return r.s.do(ctx, func() error {
		r.s.providers[p.ID] = *p
		return nil
	})
}

func (r *ProviderRepository) Update(ctx context.Context, p *entity.Provider) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.providers[p.ID]; !ok {
			return apperror.ErrProviderNotFound
		}
		r.s.providers[p.ID] = *p
		return nil
	})
}

func (r *ProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	var out *entity.Provider
	err := r.s.do(ctx, func() error {
		p, ok := r.s.providers[id]
		if !ok {
			return apperror.ErrProviderNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *ProviderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Provider, error) {
	return r.FindByID(ctx, id)
}

func (r *ProviderRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Provider, error) {
	var out []*entity.Provider
	err := r.s.do(ctx, func() error {
		var all []entity.Provider
		for _, p := range r.s.providers {
			if activeOnly && !p.IsActive {
				continue
			}
			all = append(all, p)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })
		for _, p := range all {
			cp := p
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}
