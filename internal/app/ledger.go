package app

import (
	"context"

	"event-rewards-service/internal/domain"
)

// Ledger holds per-participant point balances. Implementations must
// serialize mutations per participant (independent participants never
// block each other), keep balances non-negative at every observable
// point, and treat the reference id as an idempotency key: a replayed
// credit or debit with a reference id that already committed is a no-op
// returning the current balance.
type Ledger interface {
	// Credit adds amount points and returns the new balance.
	Credit(ctx context.Context, participantID string, amount int, reason domain.TxReason, referenceID string) (int, error)
	// Debit subtracts amount points atomically with the balance check and
	// returns the new balance, or domain.ErrInsufficientFunds.
	Debit(ctx context.Context, participantID string, amount int, reason domain.TxReason, referenceID string) (int, error)
	// Balance returns the current balance (zero for unknown participants).
	Balance(ctx context.Context, participantID string) (int, error)
	// History returns the participant's transaction log, newest first.
	History(ctx context.Context, participantID string) ([]domain.LedgerTransaction, error)
}

// Inventory tracks merchandise stock. Reserve is an indivisible
// test-and-decrement; Release is its compensating action.
type Inventory interface {
	Reserve(ctx context.Context, merchID string, quantity int) error
	Release(ctx context.Context, merchID string, quantity int) error
	Stock(ctx context.Context, merchID string) (int, error)
}
