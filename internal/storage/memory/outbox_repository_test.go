package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestOutboxRepository_EnqueueVisibleAfterCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.OutboxRepository()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	saved, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "ORD-2025-00001",
		EventType:     "order.created",
		Payload:       []byte(`{"orderId":"ORD-2025-00001"}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
	if pending[0].ID != saved.ID {
		t.Fatalf("expected same message id, got %s", pending[0].ID)
	}
}

func TestOutboxRepository_RolledBackMessagesAreDropped(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	stats, err := store.OutboxRepository().Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected no pending messages, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return created }))
	repo := store.OutboxRepository()

	tx, _ := store.Begin(ctx)
	first, _ := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"})
	second, _ := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"})
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 || !stats.OldestPendingAt.Equal(created) {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}

	pending, _ := repo.PullPending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages, got %d", len(pending))
	}
}
