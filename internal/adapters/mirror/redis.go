// internal/adapters/mirror/redis.go
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/stockbook/internal/core/ports"
)

// DefaultKeyPrefix namespaces mirror keys in a shared Redis database.
const DefaultKeyPrefix = "stockbook"

// Redis keeps one key per collection, <prefix>:<name>, without expiry.
type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// Statically assert that *Redis implements the LocalMirror interface.
var _ ports.LocalMirror = (*Redis)(nil)

// NewRedis creates a Redis mirror
func NewRedis(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("component", "mirror"), slog.String("backend", "redis")),
	}
}

// BuildKey creates the key of one mirrored blob
func (m *Redis) BuildKey(name string) string {
	return m.prefix + ":" + name
}

// Read returns the blob stored under name
func (m *Redis) Read(ctx context.Context, name string) ([]byte, error) {
	key := m.BuildKey(name)
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			m.logger.DebugContext(ctx, "mirror miss", slog.String("key", key))
			return nil, fmt.Errorf("mirror %s: %w", key, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	m.logger.DebugContext(ctx, "mirror hit", slog.String("key", key), slog.Int("size", len(data)))
	return data, nil
}

// Write overwrites the blob stored under name
func (m *Redis) Write(ctx context.Context, name string, data []byte) error {
	key := m.BuildKey(name)
	if err := m.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	m.logger.DebugContext(ctx, "mirror written", slog.String("key", key), slog.Int("size", len(data)))
	return nil
}

// Ping checks if Redis is accessible
func (m *Redis) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}
	return nil
}
