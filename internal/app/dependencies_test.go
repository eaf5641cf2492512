package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("test", "deps"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	if deps.Products == nil {
		t.Error("expected product repository")
	}
	if deps.Orders == nil {
		t.Error("expected order repository")
	}
	if deps.Ledger == nil {
		t.Error("expected ledger repository")
	}
	if deps.Outbox == nil {
		t.Error("expected outbox repository")
	}
	if deps.Idempotency == nil {
		t.Error("expected idempotency repository")
	}
	if deps.Store != nil {
		t.Error("expected no postgres store for memory driver")
	}
	if deps.RedisClient != nil {
		t.Error("expected no redis client without redis addr")
	}
}

func TestNewDependencies_EmptyDriverDefaultsToMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = ""

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	if deps.Orders == nil {
		t.Error("expected order repository")
	}
}

func TestNewDependencies_UnsupportedDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("test", "deps"))
	if err == nil {
		deps.Close()
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNewDependencies_RedisUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	// Заведомо недоступный адрес: кеш должен деградировать без ошибки.
	cfg.RedisAddr = "127.0.0.1:1"

	deps, err := NewDependencies(context.Background(), cfg, log.WithField("test", "deps"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.Close()

	if deps.RedisClient != nil {
		t.Error("expected no redis client when redis is unavailable")
	}
	if deps.Orders == nil {
		t.Error("expected order repository to stay usable")
	}
}

func TestDependencies_CloseIsSafeWithoutConnections(t *testing.T) {
	deps := &Dependencies{Logger: log.WithField("test", "deps")}

	// Не должно паниковать.
	deps.Close()
}
