package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/domain"
)

// Ledger is an in-memory implementation of app.Ledger. Each participant
// owns a private account with its own lock, so mutations for one
// participant serialize while other participants proceed in parallel.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	sink     app.AuditSink
	clock    func() time.Time
}

type account struct {
	mu      sync.Mutex
	balance int
	history []domain.LedgerTransaction
	refs    map[string]struct{}
}

func NewLedger(sink app.AuditSink) *Ledger {
	return &Ledger{
		accounts: make(map[string]*account),
		sink:     sink,
		clock:    time.Now,
	}
}

// NewLedgerWithClock is test-only for deterministic timestamps.
func NewLedgerWithClock(sink app.AuditSink, clock func() time.Time) *Ledger {
	l := NewLedger(sink)
	l.clock = clock
	return l
}

func (l *Ledger) account(participantID string) *account {
	l.mu.RLock()
	acct, ok := l.accounts[participantID]
	l.mu.RUnlock()
	if ok {
		return acct
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if acct, ok := l.accounts[participantID]; ok {
		return acct
	}
	acct = &account{refs: make(map[string]struct{})}
	l.accounts[participantID] = acct
	return acct
}

func (l *Ledger) Credit(ctx context.Context, participantID string, amount int, reason domain.TxReason, referenceID string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	return l.apply(ctx, participantID, amount, reason, referenceID)
}

func (l *Ledger) Debit(ctx context.Context, participantID string, amount int, reason domain.TxReason, referenceID string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	return l.apply(ctx, participantID, -amount, reason, referenceID)
}

func (l *Ledger) apply(ctx context.Context, participantID string, delta int, reason domain.TxReason, referenceID string) (int, error) {
	acct := l.account(participantID)

	acct.mu.Lock()
	defer acct.mu.Unlock()

	if _, seen := acct.refs[referenceID]; seen {
		// Replay of a committed mutation: no-op, report current balance.
		return acct.balance, nil
	}
	if delta < 0 && acct.balance+delta < 0 {
		return acct.balance, domain.ErrInsufficientFunds
	}

	acct.balance += delta
	acct.refs[referenceID] = struct{}{}
	tx := domain.LedgerTransaction{
		ParticipantID: participantID,
		Delta:         delta,
		Reason:        reason,
		ReferenceID:   referenceID,
		Balance:       acct.balance,
		At:            l.clock(),
	}
	acct.history = append(acct.history, tx)

	if l.sink != nil {
		l.sink.Record(ctx, domain.AuditRecord{
			ParticipantID: tx.ParticipantID,
			Delta:         tx.Delta,
			Reason:        tx.Reason,
			ReferenceID:   tx.ReferenceID,
			Balance:       tx.Balance,
			At:            tx.At,
		})
	}
	return acct.balance, nil
}

func (l *Ledger) Balance(_ context.Context, participantID string) (int, error) {
	acct := l.account(participantID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.balance, nil
}

// History returns the participant's transactions, newest first.
func (l *Ledger) History(_ context.Context, participantID string) ([]domain.LedgerTransaction, error) {
	acct := l.account(participantID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	out := make([]domain.LedgerTransaction, len(acct.history))
	for i, tx := range acct.history {
		out[len(acct.history)-1-i] = tx
	}
	return out, nil
}
