package postgres

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

func TestOutboxRepository_PostgresEnqueuePullMark(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated outbox message id")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != msg.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
	if pending[0].EventType != "order.created" {
		t.Fatalf("unexpected event type: %s", pending[0].EventType)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	pending, err = repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after sent: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending set, got %+v", pending)
	}

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("stats after sent: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected zero pending, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_PostgresMarkMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	if err := repo.MarkSent("missing-id"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for missing id, got %v", err)
	}
	if err := repo.MarkFailed("missing-id"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for missing id, got %v", err)
	}
}

func TestOutboxRepository_PostgresPullOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "stock", AggregateID: "product-1",
		EventType: "stock.reserved", Payload: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	second, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "stock", AggregateID: "product-2",
		EventType: "stock.released", Payload: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	pending, err := repo.PullPending(1)
	if err != nil {
		t.Fatalf("pull with limit: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pending))
	}
	if pending[0].ID != first.ID && pending[0].ID != second.ID {
		t.Fatalf("unexpected message id: %s", pending[0].ID)
	}
}
