package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smm-panel-backend/internal/config"
	"github.com/ignatzorin/smm-panel-backend/internal/db"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/goroutine"
	"github.com/ignatzorin/smm-panel-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/smm-panel-backend/internal/http/router"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/cache"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/crypto"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/smm-panel-backend/internal/infrastructure/provider"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/handler"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
	"github.com/ignatzorin/smm-panel-backend/internal/service"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/catalog"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/order"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/reconcile"
	"github.com/ignatzorin/smm-panel-backend/internal/ws"
)

// repositories - хранилище, выбранное STORAGE_DRIVER.
type repositories struct {
	tx           repository.Transactor
	wallets      repository.WalletRepository
	transactions repository.TransactionRepository
	orders       repository.OrderRepository
	history      repository.OrderHistoryRepository
	services     repository.ServiceRepository
	providers    repository.ProviderRepository
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	mainLog := logger.WithComponent("main")

	repos, dbConn := openStorage(ctx, cfg, mainLog)
	if dbConn != nil {
		defer safeClose(dbConn, mainLog)
	}

	rdb := openRedis(ctx, cfg, mainLog)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				mainLog.WithError(err).Warn("ошибка закрытия redis")
			}
		}()
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)
	cipher, err := crypto.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		mainLog.WithError(err).Fatal("не удалось инициализировать шифрование ключей")
	}

	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	// Каталог.
	var catalogCache *cache.Cache
	if cfg.CatalogCacheTTL > 0 {
		catalogCache = cache.New(cache.DefaultSize, cfg.CatalogCacheTTL)
	}
	reader := catalog.NewReader(repos.services, catalogCache)

	// Шлюз провайдеров.
	client := provider.NewClient(provider.ClientConfig{
		Timeout:        cfg.ProviderTimeout,
		MaxRetries:     cfg.ProviderMaxRetries,
		RetryBaseDelay: cfg.ProviderRetryBaseDelay,
	})
	gateway := provider.NewGateway(client, cipher, repos.providers, repos.tx, provider.GatewayConfig{
		BulkBatchSize:  cfg.ProviderBulkBatchSize,
		BulkBatchDelay: cfg.ProviderBulkBatchDelay,
	})

	// Кошелёк и заказы.
	wallet := ledger.New(repos.tx, repos.wallets, repos.transactions, cfg.WalletCurrency)
	transitions := order.NewTransitions(repos.tx, repos.orders, repos.history, wallet, hub)
	applyStatus := order.NewApplyProviderStatusUseCase(transitions)

	orderHandler := handler.NewOrderHandler(
		order.NewCreateOrderUseCase(repos.tx, repos.orders, repos.history,
			catalog.NewResolveForOrderUseCase(reader, repos.providers), wallet, gateway, cfg.WalletCurrency),
		order.NewGetOrderUseCase(repos.orders),
		order.NewListOrdersUseCase(repos.orders),
		order.NewGetOrderHistoryUseCase(repos.orders, repos.history),
		order.NewCancelOrderUseCase(transitions, repos.providers, gateway),
		order.NewRefundOrderUseCase(transitions),
		order.NewUpdateOrderStatusUseCase(transitions),
		order.NewUpdateProgressUseCase(transitions),
	)

	catalogHandler := handler.NewCatalogHandler(handler.CatalogUseCases{
		List:           catalog.NewListServicesUseCase(reader),
		Get:            catalog.NewGetServiceUseCase(reader),
		Create:         catalog.NewCreateServiceUseCase(repos.services, repos.providers, reader),
		Update:         catalog.NewUpdateServiceUseCase(repos.tx, repos.services, reader),
		Sync:           catalog.NewSyncFromProviderUseCase(repos.providers, repos.services, gateway, reader),
		CreateProvider: catalog.NewCreateProviderUseCase(repos.providers, cipher),
		ListProviders:  catalog.NewListProvidersUseCase(repos.providers),
		Balance:        catalog.NewProviderBalanceUseCase(repos.providers, gateway),
	})

	// Фоновая сверка статусов.
	var poller *reconcile.Poller
	if cfg.PollerEnabled {
		poller = reconcile.NewPoller(repos.orders, repos.providers, gateway, applyStatus, wallet, reconcile.Config{
			Schedule: cfg.PollerSchedule,
		})
		if err := poller.Start(); err != nil {
			mainLog.WithError(err).Fatal("не удалось запустить опрос статусов")
		}
	}

	limiterStore, err := middleware.NewLimiterStore(rdb)
	if err != nil {
		mainLog.WithError(err).Fatal("не удалось создать хранилище лимитов")
	}

	engine := httpRouter.SetupRouter(
		httpRouter.OptionsFromConfig(cfg, tokenManager, limiterStore),
		httpRouter.Handlers{
			Health:  handler.NewHealthHandler(dbConn, cfg.StorageDriver),
			WS:      handler.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
			Orders:  orderHandler,
			Wallet:  handler.NewWalletHandler(wallet),
			Catalog: catalogHandler,
		},
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("ошибка остановки http сервера")
		}
	})

	mainLog.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"storage": cfg.StorageDriver,
		"env":     cfg.Env,
	}).Info("сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mainLog.WithError(err).Error("сервер завершился с ошибкой")
	}

	if poller != nil {
		poller.Stop()
	}
	mainLog.Info("сервер остановлен")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Entry) (repositories, *sqlx.DB) {
	if cfg.StorageDriver == config.StorageMemory {
		r := memstore.NewRepositories(memstore.New())
		log.Warn("используется хранилище в памяти, данные не сохраняются между запусками")
		return repositories{
			tx:           r.Transactor,
			wallets:      r.Wallets,
			transactions: r.Transactions,
			orders:       r.Orders,
			history:      r.History,
			services:     r.Services,
			providers:    r.Providers,
		}, nil
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("ошибка подключения к базе")
	}
	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.WithError(err).Fatal("ошибка миграций")
	}

	r := persistence.NewRepositories(dbConn)
	return repositories{
		tx:           r.Transactor,
		wallets:      r.Wallets,
		transactions: r.Transactions,
		orders:       r.Orders,
		history:      r.History,
		services:     r.Services,
		providers:    r.Providers,
	}, dbConn
}

// openRedis подключает redis для лимитера запросов. Без REDIS_URL возвращает nil.
func openRedis(ctx context.Context, cfg *config.Config, log *logrus.Entry) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("некорректный REDIS_URL")
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Fatal("redis недоступен")
	}
	return rdb
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB, log *logrus.Entry) {
	if err := conn.Close(); err != nil {
		log.WithError(err).Warn("ошибка закрытия базы")
	}
}
