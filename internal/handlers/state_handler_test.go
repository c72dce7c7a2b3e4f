// internal/handlers/state_handler_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/stockbook/internal/adapters/notify"
	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
	"github.com/ammerola/stockbook/internal/handlers"
	"github.com/ammerola/stockbook/test/helpers"
)

type fakeEngine struct {
	statuses []syncer.Status
	settings domain.Settings
	updated  *domain.Settings
}

func (f *fakeEngine) Status() []syncer.Status   { return f.statuses }
func (f *fakeEngine) Settings() domain.Settings { return f.settings }

func (f *fakeEngine) UpdateSettings(_ context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.settings = s
	f.updated = &s
	return nil
}

func loadedStatuses() []syncer.Status {
	var out []syncer.Status
	for _, name := range domain.AllCollections() {
		out = append(out, syncer.Status{
			Collection: name,
			Version:    "v1",
			Phase:      syncer.PhaseIdle,
			Source:     syncer.SourceRemote,
			LoadedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func TestStateHandler_Notifications(t *testing.T) {
	feed := notify.NewFeed(10)
	handler := handlers.NewStateHandler(feed, &fakeEngine{}, helpers.TestLogger())

	feed.Notify(context.Background(), ports.Notification{ID: "n1", Kind: ports.NotifyConflict, Collection: domain.CollectionSales, Reload: true})

	w := httptest.NewRecorder()
	handler.Notifications(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.NotificationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, ports.NotifyConflict, resp.Notifications[0].Kind)
	assert.True(t, resp.Notifications[0].Reload)

	// drained
	w = httptest.NewRecorder()
	handler.Notifications(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Notifications)
	assert.NotNil(t, resp.Notifications)
}

func TestStateHandler_State(t *testing.T) {
	feed := notify.NewFeed(10)
	feed.Render(context.Background(), domain.CollectionInventory, nil)
	feed.Render(context.Background(), domain.CollectionInventory, nil)
	feed.Render(context.Background(), domain.CollectionSales, nil)
	handler := handlers.NewStateHandler(feed, &fakeEngine{statuses: loadedStatuses()}, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.State(w, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Collections []struct {
			Collection domain.CollectionName `json:"collection"`
			Phase      syncer.Phase          `json:"phase"`
			Revision   uint64                `json:"revision"`
		} `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Collections, 4)

	revisions := map[domain.CollectionName]uint64{}
	for _, c := range resp.Collections {
		revisions[c.Collection] = c.Revision
		assert.Equal(t, syncer.PhaseIdle, c.Phase)
	}
	assert.Equal(t, uint64(2), revisions[domain.CollectionInventory])
	assert.Equal(t, uint64(1), revisions[domain.CollectionSales])
	assert.Equal(t, uint64(0), revisions[domain.CollectionAuditLog])
}

func TestStateHandler_Settings(t *testing.T) {
	current := domain.Settings{
		Endpoint:     "https://api.github.com/repos/o/r",
		Token:        "ghp_secret",
		ExchangeRate: decimal.RequireFromString("1.10"),
		UserLabel:    "front-desk",
	}

	t.Run("get_redacts_token", func(t *testing.T) {
		handler := handlers.NewStateHandler(notify.NewFeed(1), &fakeEngine{settings: current}, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.GetSettings(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "ghp_secret")
		assert.Contains(t, w.Body.String(), "[REDACTED]")
	})

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		wantToken      string
	}{
		{
			name:           "redacted_token_is_kept",
			body:           `{"endpoint":"https://api.github.com/repos/o/r","token":"[REDACTED]","exchangeRate":"1.25","userLabel":"back-office"}`,
			expectedStatus: http.StatusOK,
			wantToken:      "ghp_secret",
		},
		{
			name:           "new_token_replaces",
			body:           `{"endpoint":"https://api.github.com/repos/o/r","token":"ghp_new","exchangeRate":"1.25","userLabel":"back-office"}`,
			expectedStatus: http.StatusOK,
			wantToken:      "ghp_new",
		},
		{
			name:           "zero_rate_rejected",
			body:           `{"endpoint":"x","exchangeRate":"0","userLabel":"a"}`,
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{settings: current}
			handler := handlers.NewStateHandler(notify.NewFeed(1), engine, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.UpdateSettings(w, httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.wantToken == "" {
				assert.Nil(t, engine.updated)
				return
			}
			require.NotNil(t, engine.updated)
			assert.Equal(t, tt.wantToken, engine.updated.Token)
			assert.NotContains(t, w.Body.String(), tt.wantToken)
		})
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		statuses       func() []syncer.Status
		dependency     error
		expectedStatus int
		expectedReady  int
	}{
		{
			name:           "healthy",
			statuses:       loadedStatuses,
			expectedStatus: http.StatusOK,
			expectedReady:  http.StatusOK,
		},
		{
			name: "served_from_mirror_is_degraded",
			statuses: func() []syncer.Status {
				s := loadedStatuses()
				s[1].Source = syncer.SourceMirror
				return s
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedReady:  http.StatusOK,
		},
		{
			name: "not_loaded_is_not_ready",
			statuses: func() []syncer.Status {
				s := loadedStatuses()
				s[0].LoadedAt = time.Time{}
				return s
			},
			expectedStatus: http.StatusOK,
			expectedReady:  http.StatusServiceUnavailable,
		},
		{
			name:           "mirror_down",
			statuses:       loadedStatuses,
			dependency:     errors.New("redis: connection refused"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedReady:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewHealthHandler(&fakeEngine{statuses: tt.statuses()}, "test", "test", helpers.TestLogger()).
				WithDependency("mirror", fakePinger{err: tt.dependency})

			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)

			var health handlers.HealthStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
			assert.Len(t, health.Collections, 4)

			w = httptest.NewRecorder()
			handler.Readiness(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.expectedReady, w.Code)
		})
	}
}

func TestRoutes_Register(t *testing.T) {
	engine := &fakeEngine{statuses: loadedStatuses(), settings: domain.Settings{ExchangeRate: decimal.NewFromInt(1), UserLabel: "u"}}
	feed := notify.NewFeed(5)
	routes := &handlers.Routes{
		State:  handlers.NewStateHandler(feed, engine, helpers.TestLogger()),
		Health: handlers.NewHealthHandler(engine, "test", "test", helpers.TestLogger()),
	}

	mux := http.NewServeMux()
	routes.Register(mux)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/settings", http.StatusOK},
		{http.MethodGet, "/api/v1/state", http.StatusOK},
		{http.MethodGet, "/api/v1/notifications", http.StatusOK},
		{http.MethodPost, "/api/v1/settings", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/items", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.path)
	}
}
