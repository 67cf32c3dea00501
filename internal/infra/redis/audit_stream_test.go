package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"event-rewards-service/internal/domain"
)

func TestStreamSinkPublishesRecords(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := newClient(mr)

	sink := NewStreamSink(client, "", 0)
	ctx := context.Background()

	sink.Record(ctx, domain.AuditRecord{
		ParticipantID: "alice",
		Delta:         50,
		Reason:        domain.ReasonEventReward,
		ReferenceID:   "event:quiz:alice",
		Balance:       50,
		At:            time.Now(),
	})

	entries, err := client.XRange(ctx, "audit:ledger", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(entries))
	}
	values := entries[0].Values
	if values["participant"] != "alice" || values["delta"] != "50" {
		t.Fatalf("unexpected entry: %+v", values)
	}
	if values["reason"] != string(domain.ReasonEventReward) {
		t.Fatalf("unexpected reason: %v", values["reason"])
	}
}

func TestStreamSinkSwallowsPublishErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	// The sink is best-effort: a dead Redis must not panic or surface.
	sink := NewStreamSink(client, "audit:test", 100)
	sink.Record(context.Background(), domain.AuditRecord{ParticipantID: "alice"})
}
