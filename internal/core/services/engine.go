// internal/core/services/engine.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ammerola/stockbook/internal/core/audit"
	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/migration"
	"github.com/ammerola/stockbook/internal/core/outcome"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// ErrNoStore is returned by operations that need the remote store when the
// engine runs in local-only mode.
var ErrNoStore = errors.New("no remote store configured")

// EngineConfig wires an Engine.
type EngineConfig struct {
	// Store is the remote document store. Nil runs local-only.
	Store    ports.DocumentStore
	Mirror   ports.LocalMirror
	Notifier ports.Notifier
	Renderer ports.Renderer
	Settings domain.Settings
	Logger   *slog.Logger
	// RejectWhenBusy makes a second transaction on a busy collection fail
	// instead of queueing.
	RejectWhenBusy bool
	Clock          func() time.Time
}

// Engine owns the four collection synchronizers and the collaborators every
// business operation needs.
type Engine struct {
	inventory *syncer.Synchronizer[domain.Inventory]
	sales     *syncer.Synchronizer[domain.Sales]
	suppliers *syncer.Synchronizer[domain.Suppliers]
	auditLog  *syncer.Synchronizer[domain.AuditLog]

	store    ports.DocumentStore
	mirror   ports.LocalMirror
	recorder *audit.Recorder
	reporter *outcome.Reporter
	logger   *slog.Logger
	now      func() time.Time

	settingsMu sync.RWMutex
	settings   domain.Settings
}

// NewEngine creates an engine holding four empty collections. Call LoadAll
// before serving.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &Engine{
		store:    cfg.Store,
		mirror:   cfg.Mirror,
		reporter: outcome.NewReporter(cfg.Notifier, cfg.Logger),
		logger:   cfg.Logger.With(slog.String("component", "engine")),
		now:      cfg.Clock,
		settings: cfg.Settings,
	}

	e.inventory = syncer.New(syncer.Config[domain.Inventory]{
		Name:           domain.CollectionInventory,
		Store:          cfg.Store,
		Mirror:         cfg.Mirror,
		New:            domain.NewInventory,
		Migrate:        migration.Inventory,
		Renderer:       cfg.Renderer,
		Logger:         cfg.Logger,
		RejectWhenBusy: cfg.RejectWhenBusy,
	})
	e.sales = syncer.New(syncer.Config[domain.Sales]{
		Name:           domain.CollectionSales,
		Store:          cfg.Store,
		Mirror:         cfg.Mirror,
		New:            func() domain.Sales { return domain.Sales{} },
		Migrate:        migration.Sales,
		Renderer:       cfg.Renderer,
		Logger:         cfg.Logger,
		RejectWhenBusy: cfg.RejectWhenBusy,
	})
	e.suppliers = syncer.New(syncer.Config[domain.Suppliers]{
		Name:           domain.CollectionSuppliers,
		Store:          cfg.Store,
		Mirror:         cfg.Mirror,
		New:            func() domain.Suppliers { return domain.Suppliers{} },
		Migrate:        migration.Suppliers,
		Renderer:       cfg.Renderer,
		Logger:         cfg.Logger,
		RejectWhenBusy: cfg.RejectWhenBusy,
	})
	e.auditLog = syncer.New(syncer.Config[domain.AuditLog]{
		Name:           domain.CollectionAuditLog,
		Store:          cfg.Store,
		Mirror:         cfg.Mirror,
		New:            func() domain.AuditLog { return domain.AuditLog{} },
		Migrate:        migration.AuditLog,
		Renderer:       cfg.Renderer,
		Logger:         cfg.Logger,
		RejectWhenBusy: cfg.RejectWhenBusy,
	})

	e.recorder = audit.NewRecorder(e.auditLog, cfg.Store, cfg.Logger).WithClock(cfg.Clock)
	return e
}

// LoadAll loads every collection in parallel.
func (e *Engine) LoadAll(ctx context.Context) ([]syncer.LoadResult, error) {
	return e.Load(ctx, domain.AllCollections()...)
}

// Load loads the named collections in parallel. Each collection has its own
// version and snapshot, so the loads are independent.
func (e *Engine) Load(ctx context.Context, names ...domain.CollectionName) ([]syncer.LoadResult, error) {
	if len(names) == 0 {
		names = domain.AllCollections()
	}
	for _, name := range names {
		if !name.Valid() {
			return nil, domain.NewValidationError("collection", "unknown collection %q", name)
		}
	}

	results := make([]syncer.LoadResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			res, err := e.loadOne(gctx, name)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.RemoteErr != nil {
			e.reporter.Info(ctx, res.Collection, fmt.Sprintf("Working offline: %s loaded from the local copy", res.Collection))
		}
		if res.MigrationErr != nil {
			e.reporter.Info(ctx, res.Collection, fmt.Sprintf("%s was upgraded locally; the upgrade will be saved with the next change", res.Collection))
		}
	}
	return results, nil
}

func (e *Engine) loadOne(ctx context.Context, name domain.CollectionName) (syncer.LoadResult, error) {
	switch name {
	case domain.CollectionInventory:
		return e.inventory.Load(ctx)
	case domain.CollectionSales:
		return e.sales.Load(ctx)
	case domain.CollectionSuppliers:
		return e.suppliers.Load(ctx)
	default:
		return e.auditLog.Load(ctx)
	}
}

// Status returns the state of every collection in commit order.
func (e *Engine) Status() []syncer.Status {
	return []syncer.Status{
		e.inventory.Status(),
		e.sales.Status(),
		e.suppliers.Status(),
		e.auditLog.Status(),
	}
}

// Inventory returns a copy of the inventory document.
func (e *Engine) Inventory() domain.Inventory { return e.inventory.View() }

// Sales returns a copy of the sales document.
func (e *Engine) Sales() domain.Sales { return e.sales.View() }

// Suppliers returns a copy of the suppliers document.
func (e *Engine) Suppliers() domain.Suppliers { return e.suppliers.View() }

// AuditLog returns a copy of the audit log document.
func (e *Engine) AuditLog() domain.AuditLog { return e.auditLog.View() }

// Recorder returns the audit recorder.
func (e *Engine) Recorder() *audit.Recorder { return e.recorder }

// Settings returns the runtime configuration.
func (e *Engine) Settings() domain.Settings {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.settings
}

// UpdateSettings validates s, persists it to the local mirror and makes it
// current.
func (e *Engine) UpdateSettings(ctx context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if e.mirror != nil {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		if err := e.mirror.Write(ctx, domain.SettingsKey, data); err != nil {
			return fmt.Errorf("persist settings: %w", err)
		}
	}

	e.settingsMu.Lock()
	e.settings = s
	e.settingsMu.Unlock()

	e.logger.InfoContext(ctx, "settings updated",
		slog.String("endpoint", s.Endpoint),
		slog.String("user", s.UserLabel),
		slog.String("exchange_rate", s.ExchangeRate.String()))
	return nil
}

// LoadSettings reads the persisted settings blob from the mirror. Fields
// absent from the blob keep the values of defaults.
func LoadSettings(ctx context.Context, mirror ports.LocalMirror, defaults domain.Settings) (domain.Settings, error) {
	if mirror == nil {
		return defaults, nil
	}
	data, err := mirror.Read(ctx, domain.SettingsKey)
	if errors.Is(err, ports.ErrNotFound) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("read settings: %w", err)
	}

	s := defaults
	if err := json.Unmarshal(data, &s); err != nil {
		return defaults, fmt.Errorf("%w: settings: %v", ports.ErrCorrupt, err)
	}
	if err := s.Validate(); err != nil {
		return defaults, fmt.Errorf("stored settings: %w", err)
	}
	return s, nil
}

func (e *Engine) user() string {
	return e.Settings().UserLabel
}

// track runs one synchronizer transaction with the syncing and result
// notifications around it.
func (e *Engine) track(ctx context.Context, name domain.CollectionName, action string, fn func(ctx context.Context) error) error {
	return e.reporter.Track(ctx, name, action, fn)
}

// record appends an audit entry. Failures are reported as a soft warning and
// never returned, the primary change has already committed.
func (e *Engine) record(ctx context.Context, action domain.AuditAction, targetID, targetName string, details any) {
	if err := e.recorder.Record(ctx, e.user(), action, targetID, targetName, details); err != nil {
		e.reporter.AuditWarning(ctx, string(action), err)
	}
}
