package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

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

// Catalog caches events and merchandise with TTL to avoid repeated
// loader hits. It implements app.EventCatalog and app.MerchCatalog.
type Catalog struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	events    map[string]cachedEvent
	merch     map[string]cachedMerch
	eventList cachedEventList
	merchList cachedMerchList
}

type cachedEvent struct {
	event     domain.Event
	expiresAt time.Time
}

type cachedMerch struct {
	merch     domain.Merchandise
	expiresAt time.Time
}

type cachedEventList struct {
	events    []domain.Event
	expiresAt time.Time
}

type cachedMerchList struct {
	merch     []domain.Merchandise
	expiresAt time.Time
}

func NewCatalog(loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		events: make(map[string]cachedEvent),
		merch:  make(map[string]cachedMerch),
	}
}

func (c *Catalog) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.events[eventID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.event, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("event:"+eventID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.events[eventID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.event, nil
		}
		c.mu.RUnlock()

		event, err := c.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		c.mu.Lock()
		c.events[eventID] = cachedEvent{event: event, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

func (c *Catalog) ListEvents(ctx context.Context) ([]domain.Event, error) {
	now := c.clock()

	c.mu.RLock()
	if c.eventList.expiresAt.After(now) {
		list := c.eventList.events
		c.mu.RUnlock()
		return list, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("events:all", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.eventList.expiresAt.After(now) {
			list := c.eventList.events
			c.mu.RUnlock()
			return list, nil
		}
		c.mu.RUnlock()

		events, err := c.loader.LoadEvents(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.eventList = cachedEventList{events: events, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Event), nil
}

func (c *Catalog) GetMerch(ctx context.Context, merchID string) (domain.Merchandise, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.merch[merchID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.merch, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("merch:"+merchID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.merch[merchID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.merch, nil
		}
		c.mu.RUnlock()

		merch, err := c.loader.LoadMerch(ctx, merchID)
		if err != nil {
			return domain.Merchandise{}, err
		}
		c.mu.Lock()
		c.merch[merchID] = cachedMerch{merch: merch, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return merch, nil
	})
	if err != nil {
		return domain.Merchandise{}, err
	}
	return result.(domain.Merchandise), nil
}

func (c *Catalog) ListMerch(ctx context.Context) ([]domain.Merchandise, error) {
	now := c.clock()

	c.mu.RLock()
	if c.merchList.expiresAt.After(now) {
		list := c.merchList.merch
		c.mu.RUnlock()
		return list, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("merch:all", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.merchList.expiresAt.After(now) {
			list := c.merchList.merch
			c.mu.RUnlock()
			return list, nil
		}
		c.mu.RUnlock()

		merch, err := c.loader.LoadMerchList(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.merchList = cachedMerchList{merch: merch, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return merch, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Merchandise), nil
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader is a loader backed by in-memory maps (useful for
// tests/demos).
type StaticCatalogLoader struct {
	events map[string]domain.Event
	merch  map[string]domain.Merchandise
}

func NewStaticCatalogLoader(events []domain.Event, merch []domain.Merchandise) *StaticCatalogLoader {
	l := &StaticCatalogLoader{
		events: make(map[string]domain.Event, len(events)),
		merch:  make(map[string]domain.Merchandise, len(merch)),
	}
	for _, e := range events {
		l.events[e.ID] = e
	}
	for _, m := range merch {
		l.merch[m.ID] = m
	}
	return l
}

func (l *StaticCatalogLoader) LoadEvent(_ context.Context, eventID string) (domain.Event, error) {
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return domain.Event{}, domain.ErrEventNotFound
}

func (l *StaticCatalogLoader) LoadEvents(context.Context) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *StaticCatalogLoader) LoadMerch(_ context.Context, merchID string) (domain.Merchandise, error) {
	if merch, ok := l.merch[merchID]; ok {
		return merch, nil
	}
	return domain.Merchandise{}, domain.ErrMerchNotFound
}

func (l *StaticCatalogLoader) LoadMerchList(context.Context) ([]domain.Merchandise, error) {
	out := make([]domain.Merchandise, 0, len(l.merch))
	for _, m := range l.merch {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
