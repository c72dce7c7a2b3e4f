// Package benchmarks measures the engine against the in-memory store.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/services"
	"github.com/ammerola/stockbook/test/helpers"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedInventory writes an inventory of n items straight to the store.
func seedInventory(b *testing.B, store *helpers.FakeStore, n int) []domain.Item {
	b.Helper()
	items := make([]domain.Item, n)
	for i := range items {
		items[i] = helpers.CreateTestItem(func(item *domain.Item) {
			item.ID = fmt.Sprintf("bench-%05d", i)
			item.Name = fmt.Sprintf("Benchmark Item %d", i)
			item.Quantity = 1_000_000
			item.Categories = []string{fmt.Sprintf("cat-%d", i%20)}
		})
	}
	data, err := json.Marshal(domain.Inventory{Items: items})
	if err != nil {
		b.Fatal(err)
	}
	store.Seed(domain.CollectionInventory.DocumentPath(), data)
	return items
}

// newEngine loads an engine over store.
func newEngine(b *testing.B, store *helpers.FakeStore) *services.Engine {
	b.Helper()
	engine := services.NewEngine(services.EngineConfig{
		Store:    store,
		Mirror:   helpers.NewMemoryMirror(),
		Settings: domain.Settings{ExchangeRate: decimal.NewFromInt(1), UserLabel: "bench"},
		Logger:   quietLogger(),
	})
	if _, err := engine.LoadAll(context.Background()); err != nil {
		b.Fatal(err)
	}
	return engine
}
