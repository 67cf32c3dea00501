package memory

import (
	"context"
	"testing"
)

func TestParticipationStoreLifecycle(t *testing.T) {
	store := NewParticipationStore()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "alice", "event-1"); err != nil || ok {
		t.Fatalf("expected miss before create: ok=%v err=%v", ok, err)
	}

	created, err := store.GetOrCreate(ctx, "alice", "event-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	again, err := store.GetOrCreate(ctx, "alice", "event-1")
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if created != again {
		t.Fatal("expected the same aggregate on repeat create")
	}

	got, ok, err := store.Get(ctx, "alice", "event-1")
	if err != nil || !ok || got != created {
		t.Fatalf("get after create: ok=%v err=%v", ok, err)
	}

	if _, err := store.GetOrCreate(ctx, "alice", "event-2"); err != nil {
		t.Fatalf("create second event: %v", err)
	}
	if _, err := store.GetOrCreate(ctx, "bob", "event-1"); err != nil {
		t.Fatalf("create for bob: %v", err)
	}

	mine, err := store.ListByParticipant(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 records for alice, got %d", len(mine))
	}
}
