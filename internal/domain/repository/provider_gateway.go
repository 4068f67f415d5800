package repository

import (
	"context"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
)

// ProviderGateway - внешний API провайдера услуг. Ошибки возвращаются как
// apperror EXTERNAL_SERVICE_ERROR.
type ProviderGateway interface {
	SubmitOrder(ctx context.Context, provider *entity.Provider, req entity.ProviderSubmit) (string, error)
	GetOrderStatus(ctx context.Context, provider *entity.Provider, providerOrderID string) (*entity.ProviderOrderState, error)
	GetBalance(ctx context.Context, provider *entity.Provider) (*entity.ProviderBalance, error)
	GetServices(ctx context.Context, provider *entity.Provider) ([]entity.ProviderServiceInfo, error)
	// CancelOrder не возвращает ошибку: неудача логируется, результат - false.
	CancelOrder(ctx context.Context, provider *entity.Provider, providerOrderID string) bool
	TestConnection(ctx context.Context, provider *entity.Provider) error
	BulkStatusCheck(ctx context.Context, provider *entity.Provider, providerOrderIDs []string) []entity.BulkStatusItem
}
