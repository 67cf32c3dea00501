package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"event-rewards-service/internal/domain"
)

func testInventory() *Inventory {
	return NewInventory([]domain.Merchandise{
		{ID: "merch-cap", StockQuantity: 5, IsAvailable: true},
		{ID: "merch-poster", StockQuantity: 5, IsAvailable: false},
	})
}

func TestInventoryReserveRelease(t *testing.T) {
	inv := testInventory()
	ctx := context.Background()

	if err := inv.Reserve(ctx, "merch-cap", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if stock, _ := inv.Stock(ctx, "merch-cap"); stock != 2 {
		t.Fatalf("expected stock 2, got %d", stock)
	}
	if err := inv.Reserve(ctx, "merch-cap", 3); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := inv.Release(ctx, "merch-cap", 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	if stock, _ := inv.Stock(ctx, "merch-cap"); stock != 5 {
		t.Fatalf("release did not restore stock: %d", stock)
	}
}

func TestInventoryUnavailableAndUnknown(t *testing.T) {
	inv := testInventory()
	ctx := context.Background()

	if err := inv.Reserve(ctx, "merch-poster", 1); !errors.Is(err, domain.ErrMerchUnavailable) {
		t.Fatalf("expected ErrMerchUnavailable, got %v", err)
	}
	if err := inv.Reserve(ctx, "nope", 1); !errors.Is(err, domain.ErrMerchNotFound) {
		t.Fatalf("expected ErrMerchNotFound, got %v", err)
	}
	if _, err := inv.Stock(ctx, "nope"); !errors.Is(err, domain.ErrMerchNotFound) {
		t.Fatalf("expected ErrMerchNotFound from Stock, got %v", err)
	}
}

func TestInventoryConcurrentReserveExactlyStock(t *testing.T) {
	inv := testInventory()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := inv.Reserve(ctx, "merch-cap", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected 5 reservations against stock 5, got %d", succeeded)
	}
	if stock, _ := inv.Stock(ctx, "merch-cap"); stock != 0 {
		t.Fatalf("expected stock 0, got %d", stock)
	}
}
