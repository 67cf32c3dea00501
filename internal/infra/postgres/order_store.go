package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"event-rewards-service/internal/domain"
)

// OrderStore persists confirmed orders as JSONB rows. The unique
// constraint on reference_id backs duplicate-purchase detection.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, participant_id, reference_id, created_at, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (reference_id) DO NOTHING`,
		order.ID, order.ParticipantID, order.ReferenceID, order.CreatedAt, data)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (domain.Order, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM orders WHERE id=$1`, orderID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("load order: %w", err)
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.Order{}, false, fmt.Errorf("unmarshal order: %w", err)
	}
	return order, true, nil
}

func (s *OrderStore) GetByReference(ctx context.Context, referenceID string) (domain.Order, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM orders WHERE reference_id=$1`, referenceID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("load order by reference: %w", err)
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.Order{}, false, fmt.Errorf("unmarshal order: %w", err)
	}
	return order, true, nil
}

func (s *OrderStore) ListByParticipant(ctx context.Context, participantID string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM orders WHERE participant_id=$1 ORDER BY created_at DESC`, participantID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		var order domain.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
