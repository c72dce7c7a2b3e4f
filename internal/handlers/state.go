// internal/handlers/state.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ammerola/stockbook/internal/adapters/notify"
	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// FeedSource is the notification and render feed the rendering layer polls.
type FeedSource interface {
	Drain() []ports.Notification
	State() []notify.CollectionState
	Dropped() int
}

// EngineView is the part of the engine exposing collection status and the
// runtime settings.
type EngineView interface {
	Status() []syncer.Status
	Settings() domain.Settings
	UpdateSettings(ctx context.Context, s domain.Settings) error
}

// StateHandler serves notifications, render state and settings.
type StateHandler struct {
	feed   FeedSource
	engine EngineView
	logger *slog.Logger
}

// NewStateHandler creates a new state handler
func NewStateHandler(feed FeedSource, engine EngineView, logger *slog.Logger) *StateHandler {
	return &StateHandler{
		feed:   feed,
		engine: engine,
		logger: logger.With(slog.String("handler", "state")),
	}
}

// NotificationsResponse is the body of GET /api/v1/notifications.
type NotificationsResponse struct {
	Notifications []ports.Notification `json:"notifications"`
	Dropped       int                  `json:"dropped"`
}

// Notifications handles GET /api/v1/notifications. Each notification is
// returned once.
func (h *StateHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(h.logger, w, http.StatusOK, NotificationsResponse{
		Notifications: h.feed.Drain(),
		Dropped:       h.feed.Dropped(),
	})
}

// CollectionView merges the render revision with the synchronizer status.
type CollectionView struct {
	syncer.Status
	Revision uint64 `json:"revision"`
}

// State handles GET /api/v1/state
func (h *StateHandler) State(w http.ResponseWriter, r *http.Request) {
	revisions := make(map[domain.CollectionName]uint64)
	for _, s := range h.feed.State() {
		revisions[s.Collection] = s.Revision
	}

	statuses := h.engine.Status()
	views := make([]CollectionView, 0, len(statuses))
	for _, s := range statuses {
		views = append(views, CollectionView{Status: s, Revision: revisions[s.Collection]})
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(h.logger, w, http.StatusOK, map[string]any{"collections": views})
}

// GetSettings handles GET /api/v1/settings
func (h *StateHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(h.logger, w, http.StatusOK, h.engine.Settings().Redacted())
}

// UpdateSettings handles PUT /api/v1/settings. An empty or redacted token
// keeps the current one. Store endpoint changes apply on the next start.
func (h *StateHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.Settings
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	current := h.engine.Settings()
	if req.Token == "" || req.Token == current.Redacted().Token {
		req.Token = current.Token
	}

	if err := h.engine.UpdateSettings(r.Context(), req); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, req.Redacted())
}
