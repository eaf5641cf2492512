package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/memory"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/postgres"
	"github.com/vladislavdragonenkov/catalog-oms/internal/storage/rediscache"
)

// Dependencies содержит инфраструктурные зависимости приложения:
// репозитории и подключения к внешним системам.
type Dependencies struct {
	Products    domain.ProductRepository
	Orders      domain.OrderRepository
	Ledger      domain.LedgerRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository

	Store       *postgres.Store
	RedisClient *redis.Client
	Logger      *log.Entry
}

// NewDependencies создаёт хранилище согласно конфигурации. Для postgres
// при включённом автомиграторе схема доводится до актуальной версии.
// Redis опционален: при недоступности кеша приложение продолжает работу
// напрямую с хранилищем.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("ensure postgres schema: %w", err)
			}
		}
		deps.Store = store
		deps.Products = postgres.NewProductRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Ledger = postgres.NewLedgerRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	case StorageDriverMemory, "":
		deps.Products = memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Ledger = memory.NewLedgerRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()
		logger.Info("in-memory storage initialized")
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without order cache")
			_ = client.Close()
		} else {
			deps.RedisClient = client
			deps.Orders = rediscache.NewOrderCache(deps.Orders, client,
				rediscache.WithCacheLogger(logger.WithField("component", "order-cache")))
			logger.WithField("addr", cfg.RedisAddr).Info("redis order cache initialized")
		}
	}

	return deps, nil
}

// Close освобождает подключения к внешним системам.
func (d *Dependencies) Close() {
	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
