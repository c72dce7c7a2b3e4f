// Package app wires the engine and its adapters from configuration. The API,
// the worker and stockctl all start from Bootstrap.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ammerola/stockbook/internal/adapters/docstore"
	"github.com/ammerola/stockbook/internal/adapters/mirror"
	"github.com/ammerola/stockbook/internal/adapters/notify"
	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
	"github.com/ammerola/stockbook/internal/pkg/config"
)

// Pinger is a dependency with a liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes Bootstrap for one entry point.
type Options struct {
	// Feed receives notifications and renders. Nil logs notifications only.
	Feed *notify.Feed
	// SkipLoad leaves the collections empty; the caller loads them.
	SkipLoad bool
	// RejectWhenBusy is passed to the engine.
	RejectWhenBusy bool
}

// App holds the engine, the services over it and the open connections.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store  ports.DocumentStore
	Mirror ports.LocalMirror
	Feed   *notify.Feed
	Engine *services.Engine

	Inventory   *services.InventoryService
	Sales       *services.SalesService
	Suppliers   *services.SupplierService
	Audit       *services.AuditService
	Maintenance *services.MaintenanceService

	// Dependencies are checked by the health endpoints.
	Dependencies map[string]Pinger

	redis *redis.Client
}

// Bootstrap opens the mirror and the store, restores the persisted settings
// and loads every collection.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{
		Config:       cfg,
		Logger:       logger,
		Feed:         opts.Feed,
		Dependencies: make(map[string]Pinger),
	}

	m, err := a.openMirror(ctx)
	if err != nil {
		return nil, err
	}
	a.Mirror = m

	settings, err := services.LoadSettings(ctx, m, DefaultSettings(cfg))
	if err != nil {
		logger.WarnContext(ctx, "using configured settings", slog.String("error", err.Error()))
	}

	store, err := a.openStore(ctx, settings)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store
	if store == nil {
		logger.WarnContext(ctx, "no remote store configured, running local-only")
	}

	var notifier ports.Notifier = notify.NewLogger(logger)
	var renderer ports.Renderer
	if opts.Feed != nil {
		notifier = notify.Multi{opts.Feed, notifier}
		renderer = opts.Feed
	}

	a.Engine = services.NewEngine(services.EngineConfig{
		Store:          store,
		Mirror:         m,
		Notifier:       notifier,
		Renderer:       renderer,
		Settings:       settings,
		Logger:         logger,
		RejectWhenBusy: opts.RejectWhenBusy,
	})
	a.Inventory = services.NewInventoryService(a.Engine, logger)
	a.Sales = services.NewSalesService(a.Engine, logger)
	a.Suppliers = services.NewSupplierService(a.Engine, logger)
	a.Audit = services.NewAuditService(a.Engine, logger)
	a.Maintenance = services.NewMaintenanceService(a.Engine, logger)

	if !opts.SkipLoad {
		results, err := a.Engine.LoadAll(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load collections: %w", err)
		}
		for _, res := range results {
			logger.InfoContext(ctx, "collection loaded",
				slog.String("collection", string(res.Collection)),
				slog.String("source", string(res.Source)),
				slog.String("version", string(res.Version)))
		}
	}

	return a, nil
}

// DefaultSettings derives the runtime settings used until a blob is saved.
func DefaultSettings(cfg *config.Config) domain.Settings {
	rate := cfg.Business.ExchangeRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return domain.Settings{
		Endpoint:     cfg.Store.BaseURL,
		Branch:       cfg.Store.Branch,
		Token:        cfg.Store.Token,
		ExchangeRate: rate,
		UserLabel:    cfg.Business.UserLabel,
	}
}

// Close releases the open connections.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *App) openMirror(ctx context.Context) (ports.LocalMirror, error) {
	cfg := a.Config.Mirror
	switch cfg.Backend {
	case config.MirrorRedis:
		a.Logger.InfoContext(ctx, "connecting to Redis mirror",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB))

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		m := mirror.NewRedis(client, cfg.KeyPrefix, a.Logger)
		if err := m.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis mirror: %w", err)
		}
		a.redis = client
		a.Dependencies["mirror"] = m
		return m, nil

	default:
		m, err := mirror.NewFile(cfg.Dir, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mirror directory: %w", err)
		}
		return m, nil
	}
}

// openStore returns a nil store when no endpoint is configured. Persisted
// settings override the configured endpoint, branch and token.
func (a *App) openStore(ctx context.Context, settings domain.Settings) (ports.DocumentStore, error) {
	cfg := a.Config.Store
	switch cfg.Backend {
	case config.StoreS3:
		store, err := docstore.NewS3Store(ctx, docstore.S3Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.Endpoint,
			UsePathStyle:    cfg.UsePathStyle,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		return store, nil

	default:
		baseURL, branch, token := cfg.BaseURL, cfg.Branch, cfg.Token
		if settings.Endpoint != "" {
			baseURL = settings.Endpoint
		}
		if settings.Branch != "" {
			branch = settings.Branch
		}
		if settings.Token != "" {
			token = settings.Token
		}
		if baseURL == "" {
			return nil, nil
		}

		store, err := docstore.NewHTTPStore(docstore.HTTPConfig{
			BaseURL:        baseURL,
			Token:          token,
			Branch:         branch,
			CommitterName:  cfg.CommitterName,
			CommitterEmail: cfg.CommitterEmail,
			RequestRate:    cfg.RequestRate,
			RequestBurst:   cfg.RequestBurst,
			Timeout:        cfg.Timeout,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize HTTP store: %w", err)
		}
		a.Logger.InfoContext(ctx, "HTTP document store initialized",
			slog.String("base_url", baseURL),
			slog.String("branch", branch))
		return store, nil
	}
}
