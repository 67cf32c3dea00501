package app

import (
	"context"
	"log"
	"sync"

	"event-rewards-service/internal/domain"
)

// AuditSink receives a record for every committed ledger mutation.
// Implementations must not block the mutating caller for long; delivery
// is best-effort observability, not part of the transaction.
type AuditSink interface {
	Record(ctx context.Context, rec domain.AuditRecord)
}

// LogSink writes audit records to the process log.
type LogSink struct{}

func (LogSink) Record(_ context.Context, rec domain.AuditRecord) {
	log.Printf("audit: participant=%s delta=%+d reason=%s ref=%s balance=%d",
		rec.ParticipantID, rec.Delta, rec.Reason, rec.ReferenceID, rec.Balance)
}

// MultiSink fans a record out to several sinks.
type MultiSink []AuditSink

func (m MultiSink) Record(ctx context.Context, rec domain.AuditRecord) {
	for _, sink := range m {
		sink.Record(ctx, rec)
	}
}

// Broadcaster delivers audit records to in-process subscribers, used by
// the websocket feed to stream live balance changes.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan domain.AuditRecord]string // channel -> participant filter ("" = all)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan domain.AuditRecord]string)}
}

// Subscribe returns a channel receiving records for the given
// participant (or every participant when participantID is empty). The
// caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe(participantID string) (<-chan domain.AuditRecord, func()) {
	ch := make(chan domain.AuditRecord, 8)

	b.mu.Lock()
	b.subs[ch] = participantID
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Broadcaster) Record(_ context.Context, rec domain.AuditRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, filter := range b.subs {
		if filter != "" && filter != rec.ParticipantID {
			continue
		}
		select {
		case ch <- rec:
		default:
			// Drop the oldest pending record so a slow subscriber never
			// blocks the ledger.
			select {
			case <-ch:
			default:
			}
			ch <- rec
		}
	}
}
