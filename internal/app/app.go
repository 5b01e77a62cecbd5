package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"chatboard/internal/config"
	"chatboard/internal/db"
	"chatboard/internal/health"
	"chatboard/internal/logger"
	"chatboard/internal/message"
	"chatboard/internal/messaging"
	"chatboard/internal/metrics"
	"chatboard/internal/middleware"
	"chatboard/internal/stats"
	"chatboard/internal/store"
	"chatboard/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	meterProvider *sdkmetric.MeterProvider
	producer      *messaging.Producer
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, ServiceName, Version, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize telemetry, metrics disabled", "error", err)
	} else {
		app.meterProvider = tel.MeterProvider
	}

	database := db.New(cfg.Database)

	if err := db.RunMigrations(ctx, database, (*store.Message)(nil), (*store.UserStats)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}
	if err := db.RunIndexMigration(ctx, database, (*store.Message)(nil), "idx_messages_created_at", "created_at"); err != nil {
		log.Fatal("failed to create index:", err)
	}

	appMetrics := metrics.NewMock()
	if tel != nil {
		appMetrics = tel.Metrics
		if err := appMetrics.Database.RegisterDB(database.DB, otel.Meter(ServiceName)); err != nil {
			slogLogger.Warn("failed to register database pool metrics", "error", err)
		}
	}

	// Apply CORS middleware globally
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints
	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// NATS producer setup (optional - ingestion works without it)
	producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize NATS producer", "error", err)
		producer = nil
	} else {
		slogLogger.Info("NATS producer initialized successfully")
		app.producer = producer
	}

	dataStore := store.New(database, appMetrics)

	var messageProducer message.Producer
	if producer != nil {
		messageProducer = producer
	}
	messageService := message.NewService(dataStore, messageProducer, slogLogger, appMetrics)
	messageHandler := message.NewHandler(messageService, slogLogger, appMetrics)

	statsService := stats.NewService(dataStore)
	statsHandler := stats.NewHandler(statsService, slogLogger, appMetrics)

	app.router.Route("/api", func(r chi.Router) {
		messageHandler.RegisterRoutes(r)
		statsHandler.RegisterRoutes(r)
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	if a.producer != nil {
		a.producer.Close()
	}
	if a.meterProvider != nil {
		if err := telemetry.Shutdown(ctx, a.meterProvider, a.logger); err != nil {
			a.logger.Warn("failed to shut down telemetry", "error", err)
		}
	}

	return a.server.Shutdown(ctx)
}
