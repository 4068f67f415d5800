package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// KeyEncrypter шифрует API-ключ провайдера перед сохранением.
type KeyEncrypter interface {
	Encrypt(plaintext string) (ciphertext, iv string, err error)
}

type CreateProviderInput struct {
	Name              string
	APIURL            string
	APIKey            string
	Priority          int
	RequestsPerMinute int
}

type CreateProviderUseCase struct {
	providers repository.ProviderRepository
	keys      KeyEncrypter
}

func NewCreateProviderUseCase(providers repository.ProviderRepository, keys KeyEncrypter) *CreateProviderUseCase {
	return &CreateProviderUseCase{providers: providers, keys: keys}
}

func (uc *CreateProviderUseCase) Execute(ctx context.Context, in CreateProviderInput) (*entity.Provider, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperror.Validation("название провайдера обязательно")
	}
	if err := entity.ValidateLink(in.APIURL); err != nil {
		return nil, apperror.Validation("адрес API провайдера должен быть абсолютным http(s) URL")
	}
	if in.APIKey == "" {
		return nil, apperror.Validation("API-ключ провайдера обязателен")
	}
	if in.RequestsPerMinute < 0 {
		return nil, apperror.Validation("лимит запросов не может быть отрицательным")
	}

	ciphertext, iv, err := uc.keys.Encrypt(in.APIKey)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось зашифровать ключ провайдера")
	}

	now := time.Now().UTC()
	p := &entity.Provider{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(in.Name),
		APIURL:            in.APIURL,
		APIKeyEncrypted:   ciphertext,
		APIKeyIV:          iv,
		Priority:          in.Priority,
		IsActive:          true,
		IsHealthy:         true,
		RequestsPerMinute: in.RequestsPerMinute,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := uc.providers.Create(ctx, p); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать провайдера")
	}
	return p, nil
}

type ListProvidersUseCase struct {
	providers repository.ProviderRepository
}

func NewListProvidersUseCase(providers repository.ProviderRepository) *ListProvidersUseCase {
	return &ListProvidersUseCase{providers: providers}
}

func (uc *ListProvidersUseCase) Execute(ctx context.Context, activeOnly bool) ([]*entity.Provider, error) {
	return uc.providers.List(ctx, activeOnly)
}

// ProviderBalanceUseCase запрашивает баланс у провайдера.
type ProviderBalanceUseCase struct {
	providers repository.ProviderRepository
	gateway   repository.ProviderGateway
}

func NewProviderBalanceUseCase(providers repository.ProviderRepository, gateway repository.ProviderGateway) *ProviderBalanceUseCase {
	return &ProviderBalanceUseCase{providers: providers, gateway: gateway}
}

func (uc *ProviderBalanceUseCase) Execute(ctx context.Context, providerID uuid.UUID) (*entity.ProviderBalance, error) {
	p, err := uc.providers.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return uc.gateway.GetBalance(ctx, p)
}

type SyncReport struct {
	ProviderID uuid.UUID
	Updated    int
	Disabled   int
	Skipped    int
}

// SyncFromProviderUseCase обновляет стоимость, лимиты и флаги услуг,
// связанных с провайдером, по его текущему списку. Наценка не меняется.
// Услуги, пропавшие из списка провайдера, отключаются.
type SyncFromProviderUseCase struct {
	providers repository.ProviderRepository
	services  repository.ServiceRepository
	gateway   repository.ProviderGateway
	reader    *Reader
	log       *logrus.Entry
}

func NewSyncFromProviderUseCase(providers repository.ProviderRepository, services repository.ServiceRepository, gateway repository.ProviderGateway, reader *Reader) *SyncFromProviderUseCase {
	return &SyncFromProviderUseCase{
		providers: providers,
		services:  services,
		gateway:   gateway,
		reader:    reader,
		log:       logger.WithComponent("catalog_sync"),
	}
}

func (uc *SyncFromProviderUseCase) Execute(ctx context.Context, providerID uuid.UUID) (*SyncReport, error) {
	p, err := uc.providers.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	remote, err := uc.gateway.GetServices(ctx, p)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]entity.ProviderServiceInfo, len(remote))
	for _, info := range remote {
		byID[info.ServiceID] = info
	}

	local, err := uc.services.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	// уже обновлённые услуги не должны остаться в кэше, даже если цикл прервался
	defer uc.reader.Invalidate()

	report := &SyncReport{ProviderID: providerID}
	for _, svc := range local {
		info, ok := byID[svc.ProviderServiceID]
		if !ok {
			if svc.IsActive() {
				svc.SetStatus(valueobject.ServiceStatusDisabled)
				if err := uc.services.Update(ctx, svc); err != nil {
					return nil, err
				}
				report.Disabled++
			}
			continue
		}

		if err := svc.UpdatePricing(info.Rate, svc.Profit); err != nil {
			uc.skip(svc, err)
			report.Skipped++
			continue
		}
		if err := svc.UpdateLimits(info.Min, info.Max); err != nil {
			uc.skip(svc, err)
			report.Skipped++
			continue
		}
		svc.DripFeed = info.DripFeed
		svc.Refill = info.Refill
		svc.Cancel = info.Cancel

		if err := uc.services.Update(ctx, svc); err != nil {
			return nil, err
		}
		report.Updated++
	}

	uc.log.WithFields(logrus.Fields{
		"provider_id": providerID,
		"updated":     report.Updated,
		"disabled":    report.Disabled,
		"skipped":     report.Skipped,
	}).Info("каталог синхронизирован с провайдером")
	return report, nil
}

func (uc *SyncFromProviderUseCase) skip(svc *entity.Service, err error) {
	uc.log.WithError(err).WithFields(logrus.Fields{
		"service_id":          svc.ID,
		"provider_service_id": svc.ProviderServiceID,
	}).Warn("данные провайдера нарушают ограничения услуги, пропускаем")
}
