package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	bookingapp "github.com/rentworks/backend/internal/application/booking"
	financeapp "github.com/rentworks/backend/internal/application/finance"
	taxapp "github.com/rentworks/backend/internal/application/tax"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/infrastructure/cache"
	"github.com/rentworks/backend/internal/infrastructure/config"
	"github.com/rentworks/backend/internal/infrastructure/event"
	"github.com/rentworks/backend/internal/infrastructure/logger"
	"github.com/rentworks/backend/internal/infrastructure/notification"
	"github.com/rentworks/backend/internal/infrastructure/persistence"
	"github.com/rentworks/backend/internal/infrastructure/scheduler"
	"github.com/rentworks/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
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

	log.Info("Starting booking engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel,
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Database query metrics and tracing hooks
	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.Enabled = cfg.Telemetry.Enabled
	dbMetricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, dbMetricsCfg, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.DBTraceEnabled
	dbTracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	dbTracingPlugin := telemetry.NewDBTracingPlugin(dbTracingCfg, log)
	if err := dbTracingPlugin.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Initialize repositories
	bookingRepo := persistence.NewGormBookingRepository(db.DB)
	bookableRepo := persistence.NewGormBookableRepository(db.DB)
	taxRateRepo := persistence.NewGormTaxRateRepository(db.DB)
	companyProfileRepo := persistence.NewGormCompanyProfileRepository(db.DB)

	// Idempotency store: Redis when reachable, in-memory fallback otherwise
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Business metrics over the receivables aggregates
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:               meterProvider.Meter("booking.business"),
		Logger:              log,
		ReceivablesProvider: telemetry.NewGormReceivablesMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}
	defer businessMetrics.Stop()
	businessMetrics.StartPeriodicCollection(context.Background(),
		companyProviderAdapter{profiles: companyProfileRepo}, 5*time.Minute)

	clock := shared.SystemClock{}
	notifier := notification.NewLogNotifier(log)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	bookingService := bookingapp.NewBookingService(bookingRepo, bookableRepo, taxRateRepo, companyProfileRepo, clock)
	bookingService.SetEventPublisher(eventBus)
	bookingService.SetBusinessMetrics(businessMetrics)

	quoteService := bookingapp.NewQuoteService(bookingRepo, clock, log)
	quoteService.SetNotifier(notifier)
	quoteService.SetEventPublisher(eventBus)

	cancellationService := bookingapp.NewCancellationService(bookingRepo, clock, log)
	cancellationService.SetNotifier(notifier)
	cancellationService.SetEventPublisher(eventBus)

	collectionsService := financeapp.NewCollectionsService(bookingRepo, idempotencyStore, clock, log)
	collectionsService.SetNotifier(notifier)
	collectionsService.SetEventPublisher(eventBus)
	collectionsService.SetBusinessMetrics(businessMetrics)

	taxRateService := taxapp.NewTaxRateService(taxRateRepo)
	taxRateService.SetEventPublisher(eventBus)

	// Customer notifications react to lifecycle events. The idempotency
	// wrapper keeps redelivered events from double-sending.
	notificationHandler := bookingapp.NewNotificationHandler(bookingRepo, notifier, log)
	eventBus.Subscribe(event.NewIdempotentHandler(notificationHandler, idempotencyStore, log))
	log.Info("Event handlers registered",
		zap.Strings("notification_events", notificationHandler.EventTypes()),
	)

	// Time-driven sweeps: quote expiry and the collections pass
	jobRecords := scheduler.NewJobRecordRepository(db.DB)
	sweepScheduler, err := scheduler.NewSweepScheduler(
		cfg.Scheduler, quoteService, collectionsService, companyProfileRepo, jobRecords, log,
	)
	if err != nil {
		log.Fatal("Failed to create sweep scheduler", zap.Error(err))
	}
	sweepScheduler.Start()
	defer sweepScheduler.Stop()

	// Health endpoint for orchestration probes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(db, log))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        mux,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// companyProviderAdapter bridges the company profile repository to the
// metrics collector's CompanyProvider interface
type companyProviderAdapter struct {
	profiles *persistence.GormCompanyProfileRepository
}

func (a companyProviderAdapter) GetActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	return a.profiles.ActiveCompanyIDs(ctx)
}

// healthHandler reports process and database health
func healthHandler(db *persistence.Database, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if err := db.Ping(); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "error"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
