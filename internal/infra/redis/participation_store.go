package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/domain"
)

// ParticipationStore is a Redis-aware implementation of
// app.ParticipationRepository.
// Notes:
//   - It keeps a local in-memory map of live aggregates so the
//     per-record locking stays in-process.
//   - Redis holds a write-through JSON snapshot per record plus a set of
//     event ids per participant, so records survive restarts.
//   - For true multi-instance serialization you'd pair this with a
//     distributed lock or route a participant to one instance.
type ParticipationStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	local  map[string]*app.Participation
}

func NewParticipationStore(client *redis.Client, ttl time.Duration) *ParticipationStore {
	return &ParticipationStore{
		client: client,
		ttl:    ttl,
		local:  make(map[string]*app.Participation),
	}
}

func (s *ParticipationStore) recordKey(participantID, eventID string) string {
	return "participation:" + participantID + ":" + eventID
}

func (s *ParticipationStore) indexKey(participantID string) string {
	return "participation:" + participantID + ":events"
}

func (s *ParticipationStore) GetOrCreate(ctx context.Context, participantID, eventID string) (*app.Participation, error) {
	if p, ok, err := s.Get(ctx, participantID, eventID); err != nil {
		return nil, err
	} else if ok {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantID + "|" + eventID
	if p, ok := s.local[key]; ok {
		return p, nil
	}
	p := app.NewParticipation(participantID, eventID)
	s.local[key] = p
	return p, nil
}

func (s *ParticipationStore) Get(ctx context.Context, participantID, eventID string) (*app.Participation, bool, error) {
	key := participantID + "|" + eventID

	s.mu.RLock()
	p, ok := s.local[key]
	s.mu.RUnlock()
	if ok {
		return p, true, nil
	}

	raw, err := s.client.Get(ctx, s.recordKey(participantID, eventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load participation: %w", err)
	}

	var rec domain.ParticipationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal participation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.local[key]; ok {
		return p, true, nil
	}
	p = app.Rehydrate(rec)
	s.local[key] = p
	return p, true, nil
}

func (s *ParticipationStore) ListByParticipant(ctx context.Context, participantID string) ([]*app.Participation, error) {
	eventIDs, err := s.client.SMembers(ctx, s.indexKey(participantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}

	out := make([]*app.Participation, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		p, ok, err := s.Get(ctx, participantID, eventID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save writes a committed snapshot through to Redis and indexes it
// under the participant. It takes the record rather than the aggregate
// so callers can persist while still holding the aggregate's lock.
func (s *ParticipationStore) Save(ctx context.Context, rec domain.ParticipationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal participation: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(rec.ParticipantID, rec.EventID), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(rec.ParticipantID), rec.EventID)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(rec.ParticipantID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save participation: %w", err)
	}
	return nil
}
