package memory

import (
	"context"
	"sync"

	"event-rewards-service/internal/domain"
)

// Inventory is an in-memory implementation of app.Inventory. Reserve is
// a test-and-decrement under the item's lock, so stock can never be
// observed negative and concurrent reservations on different items do
// not contend.
type Inventory struct {
	mu    sync.RWMutex
	items map[string]*stockItem
}

type stockItem struct {
	mu        sync.Mutex
	stock     int
	available bool
}

// NewInventory seeds stock from the merchandise catalog.
func NewInventory(catalog []domain.Merchandise) *Inventory {
	items := make(map[string]*stockItem, len(catalog))
	for _, m := range catalog {
		items[m.ID] = &stockItem{stock: m.StockQuantity, available: m.IsAvailable}
	}
	return &Inventory{items: items}
}

func (inv *Inventory) item(merchID string) (*stockItem, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	item, ok := inv.items[merchID]
	return item, ok
}

func (inv *Inventory) Reserve(_ context.Context, merchID string, quantity int) error {
	item, ok := inv.item(merchID)
	if !ok {
		return domain.ErrMerchNotFound
	}

	item.mu.Lock()
	defer item.mu.Unlock()
	if !item.available {
		return domain.ErrMerchUnavailable
	}
	if item.stock < quantity {
		return domain.ErrInsufficientStock
	}
	item.stock -= quantity
	return nil
}

func (inv *Inventory) Release(_ context.Context, merchID string, quantity int) error {
	item, ok := inv.item(merchID)
	if !ok {
		return domain.ErrMerchNotFound
	}

	item.mu.Lock()
	defer item.mu.Unlock()
	item.stock += quantity
	return nil
}

func (inv *Inventory) Stock(_ context.Context, merchID string) (int, error) {
	item, ok := inv.item(merchID)
	if !ok {
		return 0, domain.ErrMerchNotFound
	}

	item.mu.Lock()
	defer item.mu.Unlock()
	return item.stock, nil
}
