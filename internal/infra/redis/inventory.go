package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"event-rewards-service/internal/domain"
)

// Inventory keeps merchandise stock in Redis hashes
// (HSET merch:{id} stock N available 0|1). The availability check and
// the decrement run in one Lua script so stock never goes negative
// under concurrent reservations.
type Inventory struct {
	client *redis.Client
}

// reserveScript returns the remaining stock, or a negative sentinel:
// -1 insufficient stock, -2 item withdrawn, -3 unknown item.
var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -3
end
if redis.call('HGET', KEYS[1], 'available') ~= '1' then
  return -2
end
local stock = tonumber(redis.call('HGET', KEYS[1], 'stock') or '0')
local qty = tonumber(ARGV[1])
if stock < qty then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'stock', -qty)
`)

var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -3
end
return redis.call('HINCRBY', KEYS[1], 'stock', tonumber(ARGV[1]))
`)

func NewInventory(client *redis.Client) *Inventory {
	return &Inventory{client: client}
}

// Seed initializes stock for catalog items that have no entry yet.
// Existing entries keep their decremented counts across restarts.
func (inv *Inventory) Seed(ctx context.Context, catalog []domain.Merchandise) error {
	pipe := inv.client.Pipeline()
	for _, m := range catalog {
		key := inv.key(m.ID)
		pipe.HSetNX(ctx, key, "stock", m.StockQuantity)
		available := "0"
		if m.IsAvailable {
			available = "1"
		}
		pipe.HSetNX(ctx, key, "available", available)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed inventory: %w", err)
	}
	return nil
}

func (inv *Inventory) key(merchID string) string { return "merch:" + merchID + ":inventory" }

func (inv *Inventory) Reserve(ctx context.Context, merchID string, quantity int) error {
	result, err := reserveScript.Run(ctx, inv.client, []string{inv.key(merchID)}, quantity).Int64()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", merchID, err)
	}
	switch result {
	case -1:
		return domain.ErrInsufficientStock
	case -2:
		return domain.ErrMerchUnavailable
	case -3:
		return domain.ErrMerchNotFound
	}
	return nil
}

func (inv *Inventory) Release(ctx context.Context, merchID string, quantity int) error {
	result, err := releaseScript.Run(ctx, inv.client, []string{inv.key(merchID)}, quantity).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", merchID, err)
	}
	if result == -3 {
		return domain.ErrMerchNotFound
	}
	return nil
}

func (inv *Inventory) Stock(ctx context.Context, merchID string) (int, error) {
	stock, err := inv.client.HGet(ctx, inv.key(merchID), "stock").Int()
	if err == redis.Nil {
		return 0, domain.ErrMerchNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock %s: %w", merchID, err)
	}
	return stock, nil
}
