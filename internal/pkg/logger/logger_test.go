// internal/pkg/logger/logger_test.go
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockbook.log")
	l := NewLogger(&LogConfig{
		Level:       "info",
		Format:      "json",
		Output:      "file:" + path,
		ServiceName: "stockbook-test",
	})
	defer l.Close()

	ctx := WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = WithValue(ctx, ContextKeyCollection, "inventory")
	l.InfoContext(ctx, "collection committed",
		slog.String("version", "v2"),
		slog.String("store_token", "ghp_abcdefghijklmnopqrstuvwxyz"))
	l.Debug("dropped")

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "collection committed", entry["msg"])
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "inventory", entry["collection"])
	assert.Equal(t, "v2", entry["version"])
	assert.Equal(t, "***REDACTED***", entry["store_token"])
	assert.Equal(t, "stockbook-test", entry["service"])
}

func TestSanitizationHandler(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "key_value_secret", msg: "retrying with token=abc123", want: "retrying with token=***REDACTED***"},
		{name: "github_token", msg: "using ghp_0123456789abcdefghijABCD", want: "using ***REDACTED***"},
		{name: "email", msg: "committer ops@example.com", want: "committer ***EMAIL***"},
		{name: "plain", msg: "inventory loaded", want: "inventory loaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewSanitizationHandler(slog.NewJSONHandler(&buf, nil)))

			log.Info(tt.msg)

			var m map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
			assert.Equal(t, tt.want, m["msg"])
		})
	}
}

func TestMultiHandler_RespectsLevels(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h)

	log.Info("synced")
	log.Error("commit failed")

	assert.Equal(t, 2, strings.Count(infoBuf.String(), "\n"))
	assert.Equal(t, 1, strings.Count(errBuf.String(), "\n"))
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With(slog.String("component", "syncer")).WithGroup("commit").Info("done", slog.String("version", "v3"))

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "component=syncer")
	assert.Contains(t, out, "commit.version=v3")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
