package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

func TestIdempotencyRepository_PostgresLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)

	ttl := time.Now().UTC().Add(time.Hour)

	record, err := repo.CreateProcessing("key-1", "hash-1", ttl)
	if err != nil {
		t.Fatalf("create processing: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("unexpected status: %s", record.Status)
	}

	// Повторное создание с тем же hash возвращает существующую запись.
	existing, err := repo.CreateProcessing("key-1", "hash-1", ttl)
	if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if existing.Key != "key-1" {
		t.Fatalf("unexpected existing record: %+v", existing)
	}

	// Другой hash по тому же ключу — конфликт.
	if _, err := repo.CreateProcessing("key-1", "hash-other", ttl); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}

	if err := repo.MarkDone("key-1", []byte(`{"id":"order-1"}`), 201); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	got, err := repo.Get("key-1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != domain.IdempotencyStatusDone || got.HTTPStatus != 201 {
		t.Fatalf("unexpected record after done: %+v", got)
	}
	if string(got.ResponseBody) != `{"id":"order-1"}` {
		t.Fatalf("unexpected response body: %s", got.ResponseBody)
	}
}

func TestIdempotencyRepository_PostgresValidationAndMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)

	if _, err := repo.CreateProcessing("", "hash", time.Time{}); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
	if _, err := repo.CreateProcessing("key", "", time.Time{}); !errors.Is(err, domain.ErrIdempotencyRequestHashRequired) {
		t.Fatalf("expected ErrIdempotencyRequestHashRequired, got %v", err)
	}
	if _, err := repo.Get("missing-key"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected ErrIdempotencyKeyNotFound, got %v", err)
	}
	if err := repo.MarkFailed("missing-key", nil, 500); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected ErrIdempotencyKeyNotFound on mark, got %v", err)
	}
}

func TestIdempotencyRepository_PostgresDeleteExpired(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)

	now := time.Now().UTC()
	expired := now.Add(-time.Hour)
	alive := now.Add(time.Hour)

	if _, err := repo.CreateProcessing("expired-1", "hash-1", expired); err != nil {
		t.Fatalf("create expired-1: %v", err)
	}
	if _, err := repo.CreateProcessing("expired-2", "hash-2", expired); err != nil {
		t.Fatalf("create expired-2: %v", err)
	}
	if _, err := repo.CreateProcessing("alive-1", "hash-3", alive); err != nil {
		t.Fatalf("create alive-1: %v", err)
	}

	deleted, err := repo.DeleteExpired(now, 1)
	if err != nil {
		t.Fatalf("delete expired with limit: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	deleted, err = repo.DeleteExpired(now, 0)
	if err != nil {
		t.Fatalf("delete remaining expired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 more deleted, got %d", deleted)
	}

	if _, err := repo.Get("alive-1"); err != nil {
		t.Fatalf("alive record must survive cleanup: %v", err)
	}
}
