// internal/core/ports/notifier.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
)

// NotificationKind classifies a user-visible notification.
type NotificationKind string

// Notification kinds
const (
	NotifySuccess   NotificationKind = "success"
	NotifyConflict  NotificationKind = "conflict"
	NotifyTransient NotificationKind = "transient"
	NotifyInfo      NotificationKind = "info"
	NotifyFatal     NotificationKind = "fatal"
)

// Notification is one message for the notification layer.
type Notification struct {
	ID          string                `json:"id"`
	Kind        NotificationKind      `json:"kind"`
	Message     string                `json:"message"`
	Collection  domain.CollectionName `json:"collection,omitempty"`
	Reload      bool                  `json:"reload"`
	Retry       bool                  `json:"retry"`
	AutoDismiss bool                  `json:"autoDismiss"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// Notifier displays notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Renderer redraws a collection. It is called after every local mutation and
// every rollback, and must tolerate repeated calls with the same state.
type Renderer interface {
	Render(ctx context.Context, name domain.CollectionName, state any)
}
