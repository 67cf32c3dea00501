package redis

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"event-rewards-service/internal/domain"
)

// StreamSink publishes audit records to a Redis stream so external
// observability tooling can consume committed point movements.
// Delivery is best-effort: a failed XADD is logged, never surfaced to
// the ledger caller.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = "audit:ledger"
	}
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Record(ctx context.Context, rec domain.AuditRecord) {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"participant": rec.ParticipantID,
			"delta":       strconv.Itoa(rec.Delta),
			"reason":      string(rec.Reason),
			"reference":   rec.ReferenceID,
			"balance":     strconv.Itoa(rec.Balance),
			"at":          rec.At.Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		log.Printf("audit stream publish: %v", err)
	}
}
