// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	// Context keys for logging
	ContextKeyRequestID  ContextKey = "request_id"
	ContextKeyUser       ContextKey = "user"
	ContextKeyClientIP   ContextKey = "client_ip"
	ContextKeyMethod     ContextKey = "method"
	ContextKeyPath       ContextKey = "path"
	ContextKeyOperation  ContextKey = "operation"
	ContextKeyCollection ContextKey = "collection"
	ContextKeyTaskID     ContextKey = "task_id"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level          string `json:"level"`
	Format         string `json:"format"`
	Output         string `json:"output"` // comma separated: stdout, stderr, file:<path>
	AddSource      bool   `json:"add_source"`
	Environment    string `json:"environment"`
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`

	// Rotation of file outputs
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// Logger wraps slog.Logger with context extraction
type Logger struct {
	*slog.Logger
	config  *LogConfig
	closers []io.Closer
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level, format, output string) *slog.Logger {
	l := NewLogger(&LogConfig{
		Level:          level,
		Format:         format,
		Output:         output,
		AddSource:      level == "debug",
		ServiceName:    os.Getenv("SERVICE_NAME"),
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
		Environment:    os.Getenv("APP_ENV"),
	})
	slog.SetDefault(l.Logger)
	return l.Logger
}

// NewLogger creates a new logger
func NewLogger(config *LogConfig) *Logger {
	if config == nil {
		config = &LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return replaceAttr(config, groups, a)
		},
	}

	l := &Logger{config: config}

	var handlers []slog.Handler
	for _, output := range splitOutputs(config.Output) {
		w := l.writer(output)

		var h slog.Handler
		switch config.Format {
		case "text":
			h = NewPrettyTextHandler(w, opts)
		default:
			h = slog.NewJSONHandler(w, opts)
		}
		handlers = append(handlers, h)
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	// Context values are attached first so sanitization sees them too.
	handler = NewContextHandler(NewSanitizationHandler(handler), config)

	var attrs []slog.Attr
	if config.ServiceName != "" {
		attrs = append(attrs, slog.String("service", config.ServiceName))
	}
	if config.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", config.ServiceVersion))
	}
	if config.Environment != "" {
		attrs = append(attrs, slog.String("env", config.Environment))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	l.Logger = slog.New(handler)
	return l
}

// Close releases file outputs
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WithContext creates a logger with context values automatically extracted
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	attrs := extractContextAttrs(ctx, defaultContextKeys())
	if len(attrs) > 0 {
		return l.Logger.With(attrs...)
	}
	return l.Logger
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitOutputs(output string) []string {
	var outs []string
	for _, o := range strings.Split(output, ",") {
		if o = strings.TrimSpace(o); o != "" {
			outs = append(outs, o)
		}
	}
	if len(outs) == 0 {
		outs = []string{"stdout"}
	}
	return outs
}

func (l *Logger) writer(output string) io.Writer {
	switch output {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}

	if filename, ok := strings.CutPrefix(output, "file:"); ok {
		lj := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    valueOr(l.config.MaxSizeMB, 50),
			MaxBackups: valueOr(l.config.MaxBackups, 5),
			MaxAge:     valueOr(l.config.MaxAgeDays, 28),
			Compress:   l.config.Compress,
		}
		l.closers = append(l.closers, lj)
		return lj
	}
	return os.Stdout
}

func valueOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func defaultContextKeys() []ContextKey {
	return []ContextKey{
		ContextKeyRequestID,
		ContextKeyUser,
		ContextKeyClientIP,
		ContextKeyMethod,
		ContextKeyPath,
		ContextKeyOperation,
		ContextKeyCollection,
		ContextKeyTaskID,
	}
}

func extractContextAttrs(ctx context.Context, keys []ContextKey) []any {
	attrs := []any{}

	for _, key := range keys {
		if val := ctx.Value(key); val != nil {
			keyStr := string(key)
			switch v := val.(type) {
			case string:
				if v != "" {
					attrs = append(attrs, slog.String(keyStr, v))
				}
			case int:
				attrs = append(attrs, slog.Int(keyStr, v))
			case bool:
				attrs = append(attrs, slog.Bool(keyStr, v))
			case time.Duration:
				attrs = append(attrs, slog.Duration(keyStr, v))
			case uuid.UUID:
				attrs = append(attrs, slog.String(keyStr, v.String()))
			default:
				attrs = append(attrs, slog.Any(keyStr, v))
			}
		}
	}

	return attrs
}

func replaceAttr(config *LogConfig, _ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
		}
	}

	// Rename level key for some log aggregators
	if a.Key == slog.LevelKey && config.Format == "json" {
		a.Key = "severity"
	}

	if strings.HasSuffix(a.Key, "_ms") {
		if d, ok := a.Value.Any().(time.Duration); ok {
			a.Value = slog.Float64Value(float64(d.Milliseconds()))
		}
	}

	return a
}

// WithValue stores a logging attribute on the context
func WithValue(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
