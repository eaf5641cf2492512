package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr string

	KafkaBrokers string
	OutboxTopic  string
	DLQTopic     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	ReconcileInterval time.Duration
}

// DefaultConfig возвращает базовые настройки: in-memory хранилище,
// HTTP API на :8080 и метрики на :9090.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		OutboxTopic:                 "",
		DLQTopic:                    "",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		ReconcileInterval:           time.Minute,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения поверх
// DefaultConfig. Если задан CATALOG_POSTGRES_DSN, драйвер хранилища
// автоматически переключается на postgres.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("CATALOG_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("CATALOG_METRICS_ADDR", cfg.MetricsAddr)

	cfg.PostgresDSN = envString("CATALOG_POSTGRES_DSN", "")
	if cfg.PostgresDSN != "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	if v := envString("CATALOG_STORAGE_DRIVER", ""); v != "" {
		cfg.StorageDriver = v
	}
	cfg.PostgresAutoMigrate = envBool("CATALOG_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.RedisAddr = envString("CATALOG_REDIS_ADDR", "")

	cfg.KafkaBrokers = envString("CATALOG_KAFKA_BROKERS", "")
	cfg.OutboxTopic = envString("CATALOG_OUTBOX_TOPIC", cfg.OutboxTopic)
	cfg.DLQTopic = envString("CATALOG_DLQ_TOPIC", cfg.DLQTopic)

	cfg.OutboxPollInterval = envDuration("CATALOG_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("CATALOG_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("CATALOG_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("CATALOG_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.IdempotencyCleanupInterval = envDuration("CATALOG_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("CATALOG_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	cfg.ReconcileInterval = envDuration("CATALOG_RECONCILE_INTERVAL", cfg.ReconcileInterval)

	return cfg
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(name string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
