package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderEvent(t *testing.T) {
	event := NewOrderEvent(EventTypeOrderCreated, "order-1", "customer-1", map[string]interface{}{"total_qty": 3})

	assert.Equal(t, EventTypeOrderCreated, event.EventType)
	assert.Equal(t, "order-1", event.OrderID)
	assert.Equal(t, "customer-1", event.CustomerID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, 3, event.Metadata["total_qty"])
}

func TestNewStockEvent(t *testing.T) {
	event := NewStockEvent(EventTypeStockReserved, "order-1", "product-1", 5)

	assert.Equal(t, EventTypeStockReserved, event.EventType)
	assert.Equal(t, "order-1", event.OrderID)
	assert.Equal(t, "product-1", event.ProductID)
	assert.Equal(t, int32(5), event.Qty)
	assert.False(t, event.Timestamp.IsZero())
}
