package benchmarks

import (
	"context"
	"testing"

	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
	"github.com/ammerola/stockbook/test/helpers"
)

func BenchmarkInventoryOperations(b *testing.B) {
	ctx := context.Background()
	store := helpers.NewFakeStore()
	items := seedInventory(b, store, 500)
	engine := newEngine(b, store)
	inventory := services.NewInventoryService(engine, quietLogger())

	b.Run("Get", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = inventory.GetItem(ctx, items[i%len(items)].ID)
		}
	})

	b.Run("List", func(b *testing.B) {
		params := ports.ListParams{Search: "item 4", Page: 1, PageSize: 50, SortBy: "name"}
		for i := 0; i < b.N; i++ {
			_, _ = inventory.List(ctx, params)
		}
	})

	b.Run("AdjustQuantity", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := inventory.AdjustQuantity(ctx, items[i%len(items)].ID, -1, "bench"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkRecordSale(b *testing.B) {
	ctx := context.Background()
	store := helpers.NewFakeStore()
	items := seedInventory(b, store, 100)
	engine := newEngine(b, store)
	sales := services.NewSalesService(engine, quietLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := ports.SaleRequest{ItemID: items[i%len(items)].ID, Quantity: 1}
		if _, err := sales.RecordSale(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParallelAdjust(b *testing.B) {
	ctx := context.Background()
	store := helpers.NewFakeStore()
	items := seedInventory(b, store, 50)
	inventory := services.NewInventoryService(newEngine(b, store), quietLogger())

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = inventory.AdjustQuantity(ctx, items[i%len(items)].ID, -1, "bench")
			i++
		}
	})
}
