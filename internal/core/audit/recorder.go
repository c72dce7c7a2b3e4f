// internal/core/audit/recorder.go

// Package audit appends semantic operation records to the audit log
// collection after the primary mutation they describe has committed.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// Warning reports an audit commit that failed after its primary mutation
// had already committed. The primary change stays durable.
type Warning struct {
	Action domain.AuditAction
	Err    error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("audit log not updated for %s: %v", w.Action, w.Err)
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// AsWarning extracts a *Warning from err.
func AsWarning(err error) (*Warning, bool) {
	var w *Warning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}

// Recorder writes to the audit log synchronizer.
type Recorder struct {
	log    *syncer.Synchronizer[domain.AuditLog]
	store  ports.DocumentStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. store is used to re-read the remote
// version before destructive operations and may be nil in local-only mode.
func NewRecorder(log *syncer.Synchronizer[domain.AuditLog], store ports.DocumentStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		log:    log,
		store:  store,
		logger: logger.With(slog.String("component", "audit")),
		now:    time.Now,
	}
}

// WithClock overrides the timestamp source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends one entry and commits the audit log. Any failure is
// returned as a *Warning so callers can tell it apart from a failure of the
// primary operation.
func (r *Recorder) Record(ctx context.Context, user string, action domain.AuditAction, targetID, targetName string, details any) error {
	entry, err := domain.NewAuditEntry(action, targetID, targetName, user, details, r.now().UTC())
	if err != nil {
		return r.warn(ctx, action, err)
	}

	_, err = r.log.Mutate(ctx, func(log *domain.AuditLog) error {
		*log = append(*log, entry)
		return nil
	}, syncer.WithMessage(fmt.Sprintf("Audit %s %s", action, targetName)))
	if err != nil {
		return r.warn(ctx, action, err)
	}
	return nil
}

func (r *Recorder) warn(ctx context.Context, action domain.AuditAction, err error) error {
	r.logger.WarnContext(ctx, "audit entry not committed",
		slog.String("action", string(action)),
		slog.String("error", err.Error()))
	return &Warning{Action: action, Err: err}
}

// Entries returns up to limit entries, newest first. A limit of zero or
// less returns everything.
func (r *Recorder) Entries(limit int) []domain.AuditEntry {
	log := r.log.View()
	slices.Reverse(log)
	if limit > 0 && len(log) > limit {
		log = log[:limit]
	}
	if log == nil {
		return []domain.AuditEntry{}
	}
	return log
}

// Clear empties the log, leaving a single entry that records the clear. The
// remote version is re-read first; if it moved since the log was loaded the
// clear is rolled back as a conflict.
func (r *Recorder) Clear(ctx context.Context, user string) (int, error) {
	var removed int
	_, err := r.log.Mutate(ctx, func(log *domain.AuditLog) error {
		removed = len(*log)
		entry, err := domain.NewAuditEntry(domain.ActionAuditLogCleared, "", "", user,
			map[string]int{"removed": removed}, r.now().UTC())
		if err != nil {
			return err
		}
		*log = domain.AuditLog{entry}
		return nil
	},
		syncer.WithMessage("Clear audit log"),
		syncer.WithPrecondition(r.remoteUnchanged),
	)
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "audit log cleared", slog.Int("removed", removed))
	return removed, nil
}

func (r *Recorder) remoteUnchanged(ctx context.Context, held ports.VersionToken) error {
	if r.store == nil {
		return nil
	}

	current := ports.NoVersion
	doc, err := r.store.Load(ctx, r.log.Path())
	switch {
	case err == nil:
		current = doc.Version
	case errors.Is(err, ports.ErrNotFound):
	default:
		return err
	}

	if current != held {
		return &ports.ConflictError{Path: r.log.Path(), Expected: held, Current: current}
	}
	return nil
}
