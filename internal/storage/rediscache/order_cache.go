package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog-oms/internal/domain"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultOpTimeout = 200 * time.Millisecond
	keyPrefix        = "catalog:order:"
)

// OrderCache — read-through кэш поверх OrderRepository. Попадание в кэш
// обслуживает Get без похода в основное хранилище; любая запись
// инвалидирует ключ. Ошибки Redis деградируют до прямого чтения.
type OrderCache struct {
	inner  domain.OrderRepository
	client *redis.Client
	logger *log.Entry
	ttl    time.Duration
}

// CacheOption настраивает OrderCache.
type CacheOption func(*OrderCache)

// WithTTL задаёт время жизни закэшированного заказа.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *OrderCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger задаёт логгер кэша.
func WithCacheLogger(logger *log.Entry) CacheOption {
	return func(c *OrderCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOrderCache оборачивает репозиторий заказов кэшом на go-redis.
func NewOrderCache(inner domain.OrderRepository, client *redis.Client, opts ...CacheOption) *OrderCache {
	c := &OrderCache{
		inner:  inner,
		client: client,
		logger: log.WithField("component", "order_cache"),
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create пишет заказ в основное хранилище и сбрасывает ключ кэша.
func (c *OrderCache) Create(order domain.Order) error {
	if err := c.inner.Create(order); err != nil {
		return err
	}
	c.invalidate(order.ID)
	return nil
}

// Get отдаёт заказ из кэша либо читает из хранилища и кэширует результат.
func (c *OrderCache) Get(id string) (domain.Order, error) {
	ctx, cancel := c.opContext()
	defer cancel()

	raw, err := c.client.Get(ctx, keyPrefix+id).Result()
	switch {
	case err == nil:
		var order domain.Order
		if unmarshalErr := json.Unmarshal([]byte(raw), &order); unmarshalErr == nil {
			return order, nil
		}
		// Повреждённая запись кэша: сбрасываем и читаем из хранилища.
		c.invalidate(id)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).WithField("order_id", id).Debug("order cache read failed")
	}

	order, err := c.inner.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	c.store(order)
	return order, nil
}

// List делегирует чтение списка в основное хранилище.
func (c *OrderCache) List(limit int) ([]domain.Order, error) {
	return c.inner.List(limit)
}

// ListByCustomer делегирует выборку по клиенту в основное хранилище.
func (c *OrderCache) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	return c.inner.ListByCustomer(customerID, limit)
}

// Save обновляет заказ и сбрасывает ключ кэша.
func (c *OrderCache) Save(order domain.Order) error {
	if err := c.inner.Save(order); err != nil {
		return err
	}
	c.invalidate(order.ID)
	return nil
}

// Delete удаляет заказ и сбрасывает ключ кэша.
func (c *OrderCache) Delete(id string) error {
	if err := c.inner.Delete(id); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

func (c *OrderCache) store(order domain.Order) {
	payload, err := json.Marshal(order)
	if err != nil {
		c.logger.WithError(err).WithField("order_id", order.ID).Debug("failed to encode order for cache")
		return
	}

	ctx, cancel := c.opContext()
	defer cancel()

	if err := c.client.Set(ctx, keyPrefix+order.ID, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("order_id", order.ID).Debug("order cache write failed")
	}
}

func (c *OrderCache) invalidate(id string) {
	ctx, cancel := c.opContext()
	defer cancel()

	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		c.logger.WithError(err).WithField("order_id", id).Debug("order cache invalidation failed")
	}
}

func (c *OrderCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultOpTimeout)
}

var _ domain.OrderRepository = (*OrderCache)(nil)
