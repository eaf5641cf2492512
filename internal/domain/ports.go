package domain

import "time"

// StockCoordinator описывает резервирование и возврат остатков под заказ.
type StockCoordinator interface {
	// Reserve списывает остатки под все позиции заказа, фиксирует snapshot цен
	// и пересчитывает итоги. При нехватке остатка операция полностью откатывается.
	Reserve(order *Order) error
	// Release возвращает остатки по позициям. Ошибки отдельных позиций собираются,
	// но не прерывают возврат остальных.
	Release(orderID string, lines []OrderLine) error
}

// OrderValidator выполняет read-only проверку позиций заказа против каталога.
type OrderValidator interface {
	// ValidateLines возвращает первую обнаруженную ошибку позиции либо nil.
	ValidateLines(lines []OrderLine) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// LedgerRepository хранит журнал движений остатков.
type LedgerRepository interface {
	Append(movement StockMovement) error
	ListByProduct(productID string) ([]StockMovement, error)
	ListByOrder(orderID string) ([]StockMovement, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
