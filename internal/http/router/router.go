package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/smm-panel-backend/internal/config"
	"github.com/ignatzorin/smm-panel-backend/internal/http/middleware"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/handler"
	"github.com/ignatzorin/smm-panel-backend/internal/metrics"
	"github.com/ignatzorin/smm-panel-backend/internal/service"
)

// Handlers - все HTTP обработчики приложения.
type Handlers struct {
	Health  *handler.HealthHandler
	WS      *handler.WSHandler
	Orders  *handler.OrderHandler
	Wallet  *handler.WalletHandler
	Catalog *handler.CatalogHandler
}

// Options задаёт инфраструктуру маршрутизатора.
type Options struct {
	Env             string
	AllowedOrigins  []string
	Tokens          *service.TokenManager
	LimiterStore    limiter.Store
	RateLimitLimit  int64
	RateLimitPeriod time.Duration
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config, tokens *service.TokenManager, store limiter.Store) Options {
	return Options{
		Env:             cfg.Env,
		AllowedOrigins:  cfg.AllowedOrigins,
		Tokens:          tokens,
		LimiterStore:    store,
		RateLimitLimit:  cfg.RateLimitLimit,
		RateLimitPeriod: cfg.RateLimitPeriod,
	}
}

func SetupRouter(opts Options, h Handlers) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RequestLogger())
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.Tokens))
	if opts.LimiterStore != nil {
		protected.Use(middleware.RateLimitMiddleware(opts.LimiterStore, opts.RateLimitLimit, opts.RateLimitPeriod))
	}
	{
		protected.GET("/catalog/services", h.Catalog.ListServices)
		protected.GET("/catalog/services/:id", middleware.UUIDValidator("id"), h.Catalog.GetService)

		protected.GET("/wallet/balance", h.Wallet.GetBalance)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)
		protected.POST("/wallet/transfer", h.Wallet.Transfer)

		protected.POST("/orders", h.Orders.CreateOrder)
		protected.GET("/orders", h.Orders.ListMyOrders)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), h.Orders.GetOrder)
		protected.GET("/orders/:id/history", middleware.UUIDValidator("id"), h.Orders.GetOrderHistory)
		protected.POST("/orders/:id/cancel", middleware.UUIDValidator("id"), h.Orders.CancelOrder)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(service.RoleAdmin))
	{
		admin.POST("/services", h.Catalog.CreateService)
		admin.PATCH("/services/:id/pricing", middleware.UUIDValidator("id"), h.Catalog.UpdatePricing)
		admin.PATCH("/services/:id/limits", middleware.UUIDValidator("id"), h.Catalog.UpdateLimits)
		admin.PATCH("/services/:id/status", middleware.UUIDValidator("id"), h.Catalog.SetServiceStatus)

		admin.POST("/providers", h.Catalog.CreateProvider)
		admin.GET("/providers", h.Catalog.ListProviders)
		admin.GET("/providers/:id/balance", middleware.UUIDValidator("id"), h.Catalog.ProviderBalance)
		admin.POST("/providers/:id/sync", middleware.UUIDValidator("id"), h.Catalog.SyncProvider)

		admin.GET("/wallets/:userId", middleware.UUIDValidator("userId"), h.Wallet.UserBalance)
		admin.POST("/wallets/:userId/credit", middleware.UUIDValidator("userId"), h.Wallet.Credit)
		admin.POST("/wallets/:userId/debit", middleware.UUIDValidator("userId"), h.Wallet.Debit)
		admin.PATCH("/wallets/:userId/status", middleware.UUIDValidator("userId"), h.Wallet.SetStatus)
		admin.PATCH("/wallets/:userId/limits", middleware.UUIDValidator("userId"), h.Wallet.SetLimits)
		admin.POST("/wallets/:userId/reconcile", middleware.UUIDValidator("userId"), h.Wallet.Reconcile)

		admin.POST("/orders/:id/refund", middleware.UUIDValidator("id"), h.Orders.RefundOrder)
		admin.PATCH("/orders/:id/status", middleware.UUIDValidator("id"), h.Orders.UpdateOrderStatus)
		admin.PATCH("/orders/:id/progress", middleware.UUIDValidator("id"), h.Orders.UpdateProgress)
	}

	return r
}
