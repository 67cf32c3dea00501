package memory

import (
	"context"
	"sort"
	"sync"

	"event-rewards-service/internal/domain"
)

// OrderStore is an in-memory implementation of app.OrderRepository.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order // by order id
	byRef  map[string]string       // reference id -> order id
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]domain.Order),
		byRef:  make(map[string]string),
	}
}

func (s *OrderStore) Create(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byRef[order.ReferenceID]; dup {
		return domain.ErrAlreadyProcessed
	}
	s.orders[order.ID] = order
	s.byRef[order.ReferenceID] = order.ID
	return nil
}

func (s *OrderStore) Get(_ context.Context, orderID string) (domain.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	return order, ok, nil
}

func (s *OrderStore) GetByReference(_ context.Context, referenceID string) (domain.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[referenceID]
	if !ok {
		return domain.Order{}, false, nil
	}
	return s.orders[id], true, nil
}

func (s *OrderStore) ListByParticipant(_ context.Context, participantID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Order
	for _, order := range s.orders {
		if order.ParticipantID == participantID {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
