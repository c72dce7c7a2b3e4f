// internal/adapters/mirror/file.go

// Package mirror holds the LocalMirror backends. Both are last-write-wins
// and keep exactly one blob per name.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ammerola/stockbook/internal/core/ports"
)

const fileExt = ".json"

// File stores each blob as <dir>/<name>.json. Writes go through a temp file
// and a rename so a crash never leaves a torn blob.
type File struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

var _ ports.LocalMirror = (*File)(nil)

// NewFile creates the mirror directory if needed
func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	return &File{
		dir:    dir,
		logger: logger.With(slog.String("component", "mirror"), slog.String("backend", "file")),
	}, nil
}

func (m *File) path(name string) string {
	safe := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(name)
	return filepath.Join(m.dir, safe+fileExt)
}

// Read returns the blob stored under name
func (m *File) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("mirror %s: %w", name, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("read mirror %s: %w", name, err)
	}
	return data, nil
}

// Write atomically replaces the blob stored under name
func (m *File) Write(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.path(name)
	tmp, err := os.CreateTemp(m.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write mirror %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync mirror %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close mirror %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("replace mirror %s: %w", name, err)
	}

	m.logger.DebugContext(ctx, "mirror written", slog.String("name", name), slog.Int("size", len(data)))
	return nil
}
