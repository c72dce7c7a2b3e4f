// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ammerola/stockbook/internal/adapters/notify"
	"github.com/ammerola/stockbook/internal/app"
	"github.com/ammerola/stockbook/internal/handlers"
	"github.com/ammerola/stockbook/internal/handlers/middleware"
	"github.com/ammerola/stockbook/internal/pkg/config"
	"github.com/ammerola/stockbook/internal/pkg/logger"
	"github.com/ammerola/stockbook/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json", "stdout")

	slogger.Info("starting stockbook API",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	// Load configuration
	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.LogOutput)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
		slog.String("store", cfg.Store.Backend),
		slog.String("mirror", cfg.Mirror.Backend),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup(slogger)

	server := setupHTTPServer(ctx, cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", slog.String("address", cfg.GetServerAddress()))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}
		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	app            *app.App
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	routes         *handlers.Routes
}

func (d *dependencies) cleanup(logger *slog.Logger) {
	if d.asynqClient != nil {
		if err := d.asynqClient.Close(); err != nil {
			logger.Error("failed to close Asynq client", slog.String("error", err.Error()))
		}
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.app != nil {
		if err := d.app.Close(); err != nil {
			logger.Error("failed to close connections", slog.String("error", err.Error()))
		}
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	a, err := app.Bootstrap(ctx, cfg, logger, app.Options{Feed: notify.NewFeed(notify.DefaultCapacity)})
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap engine: %w", err)
	}
	deps.app = a

	health := handlers.NewHealthHandler(a.Engine, cfg.App.Version, cfg.App.Environment, logger)
	for name, p := range a.Dependencies {
		health.WithDependency(name, p)
	}

	// Without a broker, archive and sweep only run inline.
	var tasks handlers.TaskEnqueuer
	if cfg.Asynq.Enabled {
		logger.Info("initializing Asynq client", slog.String("redis_addr", cfg.Asynq.RedisAddr))

		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		}
		deps.asynqClient = asynq.NewClient(redisOpt)
		deps.asynqInspector = asynq.NewInspector(redisOpt)
		tasks = workers.NewTaskClient(deps.asynqClient)
		health.WithQueue(deps.asynqInspector)
	}

	deps.routes = &handlers.Routes{
		Inventory:   handlers.NewInventoryHandler(a.Inventory, a.Maintenance, cfg.Server.MaxUploadBytes, logger),
		Sales:       handlers.NewSalesHandler(a.Sales, logger),
		Suppliers:   handlers.NewSupplierHandler(a.Suppliers, a.Audit, logger),
		Maintenance: handlers.NewMaintenanceHandler(a.Maintenance, tasks, cfg.Business.ArchiveRetentionDays, logger),
		State:       handlers.NewStateHandler(a.Feed, a.Engine, logger),
		Export:      handlers.NewExportHandler(a.Engine, logger),
		Import:      handlers.NewImportHandler(a.Inventory, cfg.Server.MaxUploadBytes, logger),
		Health:      health,
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func setupHTTPServer(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	deps.routes.Register(mux)

	mws := []func(http.Handler) http.Handler{
		middleware.Recovery(logger),
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(logger),
	}
	if cfg.Security.RateLimitRequests > 0 {
		mws = append(mws, middleware.RateLimit(ctx, cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		mws = append(mws, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		mws = append(mws, middleware.SecureHeaders)
	}
	mws = append(mws,
		middleware.MaxBytes(cfg.Server.MaxBodyBytes),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, mws...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
