// test/helpers/helpers.go
package helpers

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/pkg/config"
)

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError + 4,
	}))
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "stockbook-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			LogOutput:   "stdout",
			Debug:       true,
		},
		Store: config.StoreConfig{
			Backend:        config.StoreHTTP,
			Branch:         "main",
			CommitterName:  "stockbook",
			CommitterEmail: "stockbook@localhost",
			RequestRate:    100,
			RequestBurst:   100,
			Timeout:        5 * time.Second,
		},
		Mirror: config.MirrorConfig{
			Backend:   config.MirrorFile,
			Dir:       os.TempDir(),
			KeyPrefix: "stockbook-test",
		},
		Business: config.BusinessConfig{
			ExchangeRate:         decimal.RequireFromString("1.1"),
			UserLabel:            "tester",
			ArchiveRetentionDays: 30,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			RequestIDHeader:   "X-Request-ID",
		},
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			MaxUploadBytes: 1 << 20,
		},
	}
}

// CreateTestItem creates a test inventory item
func CreateTestItem(overrides ...func(*domain.Item)) domain.Item {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	item := domain.Item{
		ID:            uuid.NewString(),
		Name:          "Brake Pad Set",
		SKU:           "BP-100",
		Quantity:      10,
		PurchasePrice: decimal.NewFromFloat(12.50),
		SalePrice:     decimal.NewFromFloat(24.99),
		Categories:    []string{"Brakes"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, override := range overrides {
		override(&item)
	}

	return item
}

// CreateTestItems creates count items named by index
func CreateTestItems(count int, overrides ...func(*domain.Item)) []domain.Item {
	items := make([]domain.Item, count)
	for i := 0; i < count; i++ {
		items[i] = CreateTestItem(append([]func(*domain.Item){func(item *domain.Item) {
			item.Name = fmt.Sprintf("Test Item %d", i+1)
			item.SKU = fmt.Sprintf("SKU-%03d", i+1)
		}}, overrides...)...)
	}
	return items
}

// CreateTestSupplier creates a test supplier
func CreateTestSupplier(overrides ...func(*domain.Supplier)) domain.Supplier {
	s := domain.Supplier{
		ID:        uuid.NewString(),
		Name:      "Acme Parts",
		Contact:   "Jo Doe",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, override := range overrides {
		override(&s)
	}
	return s
}

// SeedJSON writes v as the remote document at path and returns its version.
func SeedJSON(t *testing.T, store *FakeStore, path string, v any) string {
	t.Helper()
	data, err := jsonMarshal(v)
	require.NoError(t, err)
	return string(store.Seed(path, data))
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}
