package memory

import (
	"context"
	"strings"
	"sync"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/domain"
)

// ParticipationStore is an in-memory implementation of
// app.ParticipationRepository. Aggregates live as shared pointers, so
// Save is a no-op.
type ParticipationStore struct {
	mu      sync.RWMutex
	records map[string]*app.Participation // key: participantID|eventID
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{records: make(map[string]*app.Participation)}
}

func key(participantID, eventID string) string {
	return participantID + "|" + eventID
}

func (s *ParticipationStore) GetOrCreate(_ context.Context, participantID, eventID string) (*app.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.records[key(participantID, eventID)]; ok {
		return p, nil
	}
	p := app.NewParticipation(participantID, eventID)
	s.records[key(participantID, eventID)] = p
	return p, nil
}

func (s *ParticipationStore) Get(_ context.Context, participantID, eventID string) (*app.Participation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[key(participantID, eventID)]
	return p, ok, nil
}

func (s *ParticipationStore) ListByParticipant(_ context.Context, participantID string) ([]*app.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := participantID + "|"
	var out []*app.Participation
	for k, p := range s.records {
		if strings.HasPrefix(k, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ParticipationStore) Save(context.Context, domain.ParticipationRecord) error {
	return nil
}
