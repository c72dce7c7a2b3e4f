// internal/handlers/health.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/stockbook/internal/core/syncer"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueInspector is the part of *asynq.Inspector the health check reads.
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// StatusSource reports the synchronizer status of every collection.
type StatusSource interface {
	Status() []syncer.Status
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	engine       StatusSource
	dependencies map[string]Pinger
	queue        QueueInspector
	version      string
	environment  string
	logger       *slog.Logger
	startTime    time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine StatusSource, version, environment string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		engine:       engine,
		dependencies: make(map[string]Pinger),
		version:      version,
		environment:  environment,
		logger:       logger.With(slog.String("handler", "health")),
		startTime:    time.Now(),
	}
}

// WithDependency adds a named dependency to the checks.
func (h *HealthHandler) WithDependency(name string, p Pinger) *HealthHandler {
	h.dependencies[name] = p
	return h
}

// WithQueue adds the asynq queue check.
func (h *HealthHandler) WithQueue(inspector QueueInspector) *HealthHandler {
	h.queue = inspector
	return h
}

// HealthStatus represents the health status of the application
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Collections []syncer.Status        `json:"collections"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	ResponseTime string         `json:"response_time,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

// Health handles GET /health. The service is degraded when a dependency is
// down, a collection is served from the local mirror, or a collection's last
// commit did not land.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:      "healthy",
		Version:     h.version,
		Environment: h.environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Collections: h.engine.Status(),
		Services:    make(map[string]ServiceInfo),
		System:      getSystemInfo(),
	}

	for _, s := range health.Collections {
		if collectionDegraded(s) {
			health.Status = "degraded"
		}
	}

	for name, dep := range h.dependencies {
		info := h.checkDependency(ctx, name, dep)
		health.Services[name] = info
		if info.Status != "healthy" {
			health.Status = "degraded"
		}
	}

	if h.queue != nil {
		info := h.checkQueue(ctx)
		health.Services["asynq"] = info
		if info.Status != "healthy" {
			health.Status = "degraded"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respondJSON(h.logger, w, statusCode, health)
}

// Readiness handles GET /ready. The service is ready once every collection
// has been loaded and every dependency answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)

	for _, s := range h.engine.Status() {
		if s.LoadedAt.IsZero() {
			ready = false
			details[string(s.Collection)] = "not loaded"
		} else {
			details[string(s.Collection)] = "ready"
		}
	}

	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			ready = false
			details[name] = "not ready"
		} else {
			details[name] = "ready"
		}
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respondJSON(h.logger, w, statusCode, map[string]any{
		"ready":   ready,
		"details": details,
	})
}

func collectionDegraded(s syncer.Status) bool {
	return s.Source == syncer.SourceMirror ||
		s.LastOutcome == syncer.PhaseConflicted ||
		s.LastOutcome == syncer.PhaseFailed
}

func (h *HealthHandler) checkDependency(ctx context.Context, name string, dep Pinger) ServiceInfo {
	start := time.Now()
	if err := dep.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "health check failed",
			slog.String("dependency", name),
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}
	return ServiceInfo{Status: "healthy", ResponseTime: time.Since(start).String()}
}

func (h *HealthHandler) checkQueue(ctx context.Context) ServiceInfo {
	start := time.Now()

	queues, err := h.queue.Queues()
	if err != nil {
		h.logger.ErrorContext(ctx, "asynq health check failed",
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}
	sort.Strings(queues)

	stats := make(map[string]any, len(queues))
	for _, queue := range queues {
		info, err := h.queue.GetQueueInfo(queue)
		if err != nil {
			continue
		}
		stats[queue] = map[string]any{
			"size":      info.Size,
			"active":    info.Active,
			"pending":   info.Pending,
			"scheduled": info.Scheduled,
			"retry":     info.Retry,
			"archived":  info.Archived,
		}
	}

	return ServiceInfo{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
		Details:      map[string]any{"queues": stats},
	}
}

func getSystemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAllocMB: memStats.Alloc / 1024 / 1024,
		NumGC:         memStats.NumGC,
	}
}
