// internal/core/outcome/reporter.go
package outcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/stockbook/internal/core/audit"
	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// Reporter sends the syncing indication before a commit and the classified
// result after it.
type Reporter struct {
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewReporter creates a reporter. A nil notifier only logs.
func NewReporter(notifier ports.Notifier, logger *slog.Logger) *Reporter {
	return &Reporter{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "reporter")),
		now:      time.Now,
	}
}

// Track wraps one user operation: it shows the syncing indication, runs fn
// and reports what fn returned. The error is passed through unchanged.
func (r *Reporter) Track(ctx context.Context, collection domain.CollectionName, action string, fn func(ctx context.Context) error) error {
	r.notify(ctx, ports.Notification{
		Kind:        ports.NotifyInfo,
		Message:     fmt.Sprintf("Syncing %s...", collection),
		Collection:  collection,
		AutoDismiss: true,
	})
	err := fn(ctx)
	r.Report(ctx, collection, action, err)
	return err
}

// Report classifies err and notifies the user accordingly.
func (r *Reporter) Report(ctx context.Context, collection domain.CollectionName, action string, err error) Outcome {
	out := Classify(err)
	n := ports.Notification{Collection: collection}

	switch out {
	case Success:
		n.Kind = ports.NotifySuccess
		n.Message = fmt.Sprintf("%s saved", action)
		n.AutoDismiss = true
		r.logger.DebugContext(ctx, "operation committed", slog.String("action", action))
	case Conflict:
		n.Kind = ports.NotifyConflict
		n.Message = fmt.Sprintf("%s was not saved: %s changed elsewhere. Reload to continue.", action, collection)
		n.Reload = true
		r.logger.WarnContext(ctx, "operation conflicted", slog.String("action", action), slog.String("error", err.Error()))
	case Transient:
		n.Kind = ports.NotifyTransient
		n.Message = fmt.Sprintf("%s was not saved: %s. Try again.", action, reason(err))
		n.Retry = true
		n.AutoDismiss = true
		r.logger.WarnContext(ctx, "operation failed, retryable", slog.String("action", action), slog.String("error", err.Error()))
	default:
		n.Kind = ports.NotifyFatal
		n.Message = fmt.Sprintf("%s failed: %v", action, err)
		r.logger.ErrorContext(ctx, "operation failed", slog.String("action", action), slog.String("error", err.Error()))
	}
	r.notify(ctx, n)

	r.AuditWarning(ctx, action, err)
	return out
}

// AuditWarning surfaces an *audit.Warning as a soft informational notice.
// Any other error is ignored.
func (r *Reporter) AuditWarning(ctx context.Context, action string, err error) {
	w, ok := audit.AsWarning(err)
	if !ok {
		return
	}
	r.notify(ctx, ports.Notification{
		Kind:        ports.NotifyInfo,
		Message:     fmt.Sprintf("%s saved, but the audit log could not be updated", action),
		Collection:  domain.CollectionAuditLog,
		AutoDismiss: true,
	})
	r.logger.WarnContext(ctx, "audit warning", slog.String("action", string(w.Action)), slog.String("error", w.Err.Error()))
}

// Info sends an informational notification.
func (r *Reporter) Info(ctx context.Context, collection domain.CollectionName, message string) {
	r.notify(ctx, ports.Notification{
		Kind:        ports.NotifyInfo,
		Message:     message,
		Collection:  collection,
		AutoDismiss: true,
	})
}

func (r *Reporter) notify(ctx context.Context, n ports.Notification) {
	if r.notifier == nil {
		return
	}
	n.ID = uuid.NewString()
	n.CreatedAt = r.now().UTC()
	r.notifier.Notify(ctx, n)
}

func reason(err error) string {
	var transport *ports.TransportError
	if errors.As(err, &transport) {
		if transport.RateLimited || transport.StatusCode == http.StatusTooManyRequests {
			return "the store is rate limiting requests"
		}
		return "the store could not be reached"
	}
	if errors.Is(err, syncer.ErrBusy) {
		return "another change is still syncing"
	}
	return "the request timed out"
}
