package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"event-rewards-service/internal/domain"
)

// CatalogLoader fetches catalog content from a backing store (e.g. Postgres).
type CatalogLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
	LoadEvents(ctx context.Context) ([]domain.Event, error)
	LoadMerch(ctx context.Context, merchID string) (domain.Merchandise, error)
	LoadMerchList(ctx context.Context) ([]domain.Merchandise, error)
}

// Catalog caches event and merchandise JSON in Redis and falls back to
// a loader on cache miss. It implements app.EventCatalog and
// app.MerchCatalog.
type Catalog struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalog(client *redis.Client, loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Catalog) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var event domain.Event
	err := c.cached(ctx, "catalog:event:"+eventID, &event, func() (interface{}, error) {
		return c.loader.LoadEvent(ctx, eventID)
	})
	return event, err
}

func (c *Catalog) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	err := c.cached(ctx, "catalog:events", &events, func() (interface{}, error) {
		return c.loader.LoadEvents(ctx)
	})
	return events, err
}

func (c *Catalog) GetMerch(ctx context.Context, merchID string) (domain.Merchandise, error) {
	var merch domain.Merchandise
	err := c.cached(ctx, "catalog:merch:"+merchID, &merch, func() (interface{}, error) {
		return c.loader.LoadMerch(ctx, merchID)
	})
	return merch, err
}

func (c *Catalog) ListMerch(ctx context.Context) ([]domain.Merchandise, error) {
	var merch []domain.Merchandise
	err := c.cached(ctx, "catalog:merchlist", &merch, func() (interface{}, error) {
		return c.loader.LoadMerchList(ctx)
	})
	return merch, err
}

// cached reads key into dst, collapsing concurrent misses through
// singleflight and refilling Redis with a jittered TTL.
func (c *Catalog) cached(ctx context.Context, key string, dst interface{}, load func() (interface{}, error)) error {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dst)
	}
	if err != redis.Nil {
		return fmt.Errorf("catalog cache read %s: %w", key, err)
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}

		value, err := load()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		if err := c.client.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
			return nil, fmt.Errorf("catalog cache write %s: %w", key, err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dst)
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
