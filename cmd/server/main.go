package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	bulkopsapp "github.com/commercesync/backend/internal/application/bulkops"
	conflictapp "github.com/commercesync/backend/internal/application/conflict"
	inventoryapp "github.com/commercesync/backend/internal/application/inventory"
	syncapp "github.com/commercesync/backend/internal/application/sync"
	"github.com/commercesync/backend/internal/domain/conflict"
	"github.com/commercesync/backend/internal/domain/mapping"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/infrastructure/bulkfile"
	"github.com/commercesync/backend/internal/infrastructure/cache"
	"github.com/commercesync/backend/internal/infrastructure/config"
	"github.com/commercesync/backend/internal/infrastructure/connector"
	"github.com/commercesync/backend/internal/infrastructure/event"
	"github.com/commercesync/backend/internal/infrastructure/logger"
	"github.com/commercesync/backend/internal/infrastructure/persistence"
	"github.com/commercesync/backend/internal/infrastructure/scheduler"
	"github.com/commercesync/backend/internal/infrastructure/storage"
	"github.com/commercesync/backend/internal/infrastructure/telemetry"
	"github.com/commercesync/backend/internal/interfaces/http/handler"
	"github.com/commercesync/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting commerce sync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	syncMetrics, err := telemetry.NewSyncMetrics(otel.Meter(cfg.App.Name), log)
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}
	log.Info("Database connected")

	// Repositories and store
	jobRepo := persistence.NewGormSyncJobRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	conflictRepo := persistence.NewGormConflictRepository(db.DB)
	bulkOpRepo := persistence.NewGormBulkOperationRepository(db.DB)
	bulkRecordRepo := persistence.NewGormBulkRecordRepository(db.DB)
	localStore := persistence.NewGormLocalStore(db.DB)
	inventoryRepo := persistence.NewGormInventoryRepository(db.DB)

	// Connectors
	var connectors []sync.Connector
	if cfg.Connectors.Shopify.Enabled {
		connectors = append(connectors, connector.NewShopifyConnector(cfg.Connectors.Shopify))
		log.Info("Shopify connector enabled", zap.String("shop", cfg.Connectors.Shopify.ShopDomain))
	}
	if cfg.Connectors.Magento.Enabled {
		connectors = append(connectors, connector.NewMagentoConnector(cfg.Connectors.Magento))
		log.Info("Magento connector enabled", zap.String("base_url", cfg.Connectors.Magento.BaseURL))
	}
	registry := connector.NewRegistry(connectors...)

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(telemetry.NewSyncEventHandler(syncMetrics))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Webhook deduplication
	idempotencyStore := cache.NewIdempotencyStore(cfg.Redis, log)
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Object storage
	objectStore, err := storage.NewFromConfig(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Sync pipeline. Writes go through the projecting store so inventory
	// records keep warehouse positions current.
	store := inventoryapp.NewProjector(localStore, inventoryRepo, log)
	mapper := mapping.NewMapper(mappingRepo, localStore, cfg.Sync.AutoMapCreate)
	resolver := conflict.NewResolver()
	orchestrator := syncapp.NewOrchestrator(
		jobRepo, registry, store, mapper, mappingRepo,
		resolver, conflictRepo, eventBus, log, cfg.Sync.PageSize,
	)
	syncService := syncapp.NewService(orchestrator, jobRepo, log)
	webhookHandler := syncapp.NewWebhookHandler(orchestrator, idempotencyStore, cfg.Sync.WebhookDedupTTL, log)
	conflictService := conflictapp.NewService(conflictRepo, store, log)
	inventoryService := inventoryapp.NewService(inventoryRepo, log)

	// Bulk pipeline
	bulkEngine := bulkopsapp.NewEngine(
		bulkOpRepo, bulkRecordRepo, store,
		bulkfile.NewCSVParser(),
		bulkfile.NewSchemaConverter(),
		bulkfile.NewCSVReportWriter(objectStore),
		log,
	)

	// Scheduler
	var syncScheduler *scheduler.SyncScheduler
	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
		schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
		schedCfg.Interval = cfg.Scheduler.Interval

		executor := scheduler.ExecutorFunc(func(ctx context.Context, req scheduler.SyncRequest) error {
			job, err := sync.NewSyncJob(req.TenantID, req.Kind, req.Direction, req.Source, req.Target)
			if err != nil {
				return err
			}
			job.Warehouse = req.Warehouse
			if err := jobRepo.Save(ctx, job); err != nil {
				return err
			}
			_, err = syncService.RunNow(ctx, job, nil)
			return err
		})

		syncScheduler, err = scheduler.NewSyncScheduler(schedCfg, executor, log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Scheduler started",
			zap.Int("max_concurrent_jobs", schedCfg.MaxConcurrentJobs),
			zap.Duration("interval", schedCfg.Interval))
	}

	// HTTP
	engine := router.New(router.Deps{
		Logger:    log,
		HTTP:      cfg.HTTP,
		Health:    handler.NewHealthHandler(db.DB, cfg.App.Name, cfg.App.Env),
		Sync:      handler.NewSyncHandler(syncService, webhookHandler),
		Bulk:      handler.NewBulkHandler(bulkEngine, objectStore, cfg.Bulk.MaxFileSize),
		Mapping:   handler.NewMappingHandler(mapper, mappingRepo),
		Conflict:  handler.NewConflictHandler(conflictService),
		Inventory: handler.NewInventoryHandler(inventoryService),
	})

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown", zap.Error(err))
	}
	if syncScheduler != nil {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
