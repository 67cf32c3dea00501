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

// CatalogLoader loads event and merchandise JSONB from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM events WHERE id=$1`, eventID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("load event: %w", err)
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

func (l *CatalogLoader) LoadEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var event domain.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (l *CatalogLoader) LoadMerch(ctx context.Context, merchID string) (domain.Merchandise, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM merchandise WHERE id=$1`, merchID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Merchandise{}, domain.ErrMerchNotFound
	}
	if err != nil {
		return domain.Merchandise{}, fmt.Errorf("load merchandise: %w", err)
	}
	var merch domain.Merchandise
	if err := json.Unmarshal(raw, &merch); err != nil {
		return domain.Merchandise{}, fmt.Errorf("unmarshal merchandise: %w", err)
	}
	return merch, nil
}

func (l *CatalogLoader) LoadMerchList(ctx context.Context) ([]domain.Merchandise, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM merchandise ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load merchandise list: %w", err)
	}
	defer rows.Close()

	var items []domain.Merchandise
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan merchandise: %w", err)
		}
		var merch domain.Merchandise
		if err := json.Unmarshal(raw, &merch); err != nil {
			return nil, fmt.Errorf("unmarshal merchandise: %w", err)
		}
		items = append(items, merch)
	}
	return items, rows.Err()
}
