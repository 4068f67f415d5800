package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/dto"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/catalog"
	"github.com/ignatzorin/smm-panel-backend/internal/validation"
)

type CatalogHandler struct {
	listUC     *catalog.ListServicesUseCase
	getUC      *catalog.GetServiceUseCase
	createUC   *catalog.CreateServiceUseCase
	updateUC   *catalog.UpdateServiceUseCase
	syncUC     *catalog.SyncFromProviderUseCase
	providerUC *catalog.CreateProviderUseCase
	providers  *catalog.ListProvidersUseCase
	balanceUC  *catalog.ProviderBalanceUseCase
}

type CatalogUseCases struct {
	List           *catalog.ListServicesUseCase
	Get            *catalog.GetServiceUseCase
	Create         *catalog.CreateServiceUseCase
	Update         *catalog.UpdateServiceUseCase
	Sync           *catalog.SyncFromProviderUseCase
	CreateProvider *catalog.CreateProviderUseCase
	ListProviders  *catalog.ListProvidersUseCase
	Balance        *catalog.ProviderBalanceUseCase
}

func NewCatalogHandler(uc CatalogUseCases) *CatalogHandler {
	return &CatalogHandler{
		listUC:     uc.List,
		getUC:      uc.Get,
		createUC:   uc.Create,
		updateUC:   uc.Update,
		syncUC:     uc.Sync,
		providerUC: uc.CreateProvider,
		providers:  uc.ListProviders,
		balanceUC:  uc.Balance,
	}
}

// ListServices обрабатывает GET /api/catalog/services.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	list, err := h.listUC.Execute(c.Request.Context(), p.TenantID, c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToServiceResponses(list, p.IsAdmin()))
}

// GetService обрабатывает GET /api/catalog/services/:id.
func (h *CatalogHandler) GetService(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id", "некорректный ID услуги")
	if !ok {
		return
	}

	svc, err := h.getUC.Execute(c.Request.Context(), id, p.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToServiceResponse(svc, p.IsAdmin()))
}

// CreateService обрабатывает POST /api/admin/services.
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req dto.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateFields(
		validation.Field{Name: "name", Value: req.Name, Required: true, Max: validation.MaxNameLength},
		validation.Field{Name: "category", Value: req.Category, Max: validation.MaxCategoryLength},
	); err != nil {
		response.Error(c, err)
		return
	}
	tenantID, err := parseUUIDPtr(req.TenantID)
	if err != nil {
		response.BadRequest(c, "некорректный tenant_id")
		return
	}

	svc, err := h.createUC.Execute(c.Request.Context(), entity.NewServiceParams{
		TenantID:          tenantID,
		ProviderID:        uuid.MustParse(req.ProviderID),
		ProviderServiceID: req.ProviderServiceID,
		Name:              req.Name,
		Category:          req.Category,
		Rate:              req.Rate,
		Profit:            req.Profit,
		MinQuantity:       req.MinQuantity,
		MaxQuantity:       req.MaxQuantity,
		DripFeed:          req.DripFeed,
		Refill:            req.Refill,
		Cancel:            req.Cancel,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToServiceResponse(svc, true))
}

// UpdatePricing обрабатывает PATCH /api/admin/services/:id/pricing.
func (h *CatalogHandler) UpdatePricing(c *gin.Context) {
	id, ok := pathUUID(c, "id", "некорректный ID услуги")
	if !ok {
		return
	}
	var req dto.UpdatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	svc, err := h.updateUC.UpdatePricing(c.Request.Context(), id, req.Rate, req.Profit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToServiceResponse(svc, true))
}

// UpdateLimits обрабатывает PATCH /api/admin/services/:id/limits.
func (h *CatalogHandler) UpdateLimits(c *gin.Context) {
	id, ok := pathUUID(c, "id", "некорректный ID услуги")
	if !ok {
		return
	}
	var req dto.UpdateLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	svc, err := h.updateUC.UpdateLimits(c.Request.Context(), id, req.MinQuantity, req.MaxQuantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToServiceResponse(svc, true))
}

// SetServiceStatus обрабатывает PATCH /api/admin/services/:id/status.
func (h *CatalogHandler) SetServiceStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id", "некорректный ID услуги")
	if !ok {
		return
	}
	var req dto.ServiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	status, err := valueobject.NewServiceStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	svc, err := h.updateUC.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToServiceResponse(svc, true))
}

// CreateProvider обрабатывает POST /api/admin/providers.
func (h *CatalogHandler) CreateProvider(c *gin.Context) {
	var req dto.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateFields(
		validation.Field{Name: "name", Value: req.Name, Required: true, Max: validation.MaxNameLength},
		validation.Field{Name: "api_url", Value: req.APIURL, Required: true, Max: validation.MaxLinkLength},
	); err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.providerUC.Execute(c.Request.Context(), catalog.CreateProviderInput{
		Name:              req.Name,
		APIURL:            req.APIURL,
		APIKey:            req.APIKey,
		Priority:          req.Priority,
		RequestsPerMinute: req.RequestsPerMinute,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToProviderResponse(p))
}

// ListProviders обрабатывает GET /api/admin/providers.
func (h *CatalogHandler) ListProviders(c *gin.Context) {
	list, err := h.providers.Execute(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToProviderResponses(list))
}

// ProviderBalance обрабатывает GET /api/admin/providers/:id/balance.
func (h *CatalogHandler) ProviderBalance(c *gin.Context) {
	id, ok := pathUUID(c, "id", "некорректный ID провайдера")
	if !ok {
		return
	}

	balance, err := h.balanceUC.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"balance": balance.Balance, "currency": balance.Currency})
}

// SyncProvider обрабатывает POST /api/admin/providers/:id/sync.
func (h *CatalogHandler) SyncProvider(c *gin.Context) {
	id, ok := pathUUID(c, "id", "некорректный ID провайдера")
	if !ok {
		return
	}

	report, err := h.syncUC.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"provider_id": report.ProviderID,
		"updated":     report.Updated,
		"disabled":    report.Disabled,
		"skipped":     report.Skipped,
	})
}
