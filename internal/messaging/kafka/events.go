package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated EventType = "order.created"
	EventTypeOrderUpdated EventType = "order.updated"
	EventTypeOrderDeleted EventType = "order.deleted"

	// Stock события
	EventTypeStockReserved EventType = "stock.reserved"
	EventTypeStockReleased EventType = "stock.released"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "catalog.order.events"
	TopicStockEvents     = "catalog.stock.events"
	TopicDeadLetterQueue = "catalog.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие жизненного цикла заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// StockEvent представляет событие движения остатка
type StockEvent struct {
	EventType EventType `json:"event_type"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Qty       int32     `json:"qty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStockEvent создаёт событие движения остатка с текущим временем.
func NewStockEvent(eventType EventType, orderID, productID string, qty int32) StockEvent {
	return StockEvent{
		EventType: eventType,
		OrderID:   orderID,
		ProductID: productID,
		Qty:       qty,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderEvent создаёт событие заказа с текущим временем.
func NewOrderEvent(eventType EventType, orderID, customerID string, metadata map[string]interface{}) OrderEvent {
	return OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}
}
