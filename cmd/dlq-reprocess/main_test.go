package main

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog-oms/internal/messaging/kafka"
)

func dlqMessage(t *testing.T, payload dlqPayload) []byte {
	t.Helper()

	inner, err := json.Marshal(payload)
	require.NoError(t, err)

	envelope := dlqEnvelope{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   payload.AggregateID,
		EventType:     payload.EventType,
		Payload:       inner,
	}
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	return raw
}

func headerValue(headers []sarama.RecordHeader, key string) (string, bool) {
	for _, header := range headers {
		if string(header.Key) == key {
			return string(header.Value), true
		}
	}
	return "", false
}

func TestExtractReplayMessage_SetsDiagnosticHeaders(t *testing.T) {
	raw := dlqMessage(t, dlqPayload{
		OutboxID:      "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "OrderCreated",
		Payload:       json.RawMessage(`{"order_id":"order-1"}`),
		PublishError:  "kafka: broker unavailable",
		FailedAt:      "2026-08-30T10:00:00Z",
	})

	msg, err := extractReplayMessage(raw, kafka.TopicDeadLetterQueue, 0)
	require.NoError(t, err)
	assert.Equal(t, "order-1", msg.key)

	retry, ok := headerValue(msg.headers, kafka.HeaderRetryCount)
	require.True(t, ok)
	assert.Equal(t, "1", retry)

	source, ok := headerValue(msg.headers, kafka.HeaderOriginalTopic)
	require.True(t, ok)
	assert.Equal(t, kafka.TopicDeadLetterQueue, source)

	cause, ok := headerValue(msg.headers, kafka.HeaderErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "kafka: broker unavailable", cause)

	failedAt, ok := headerValue(msg.headers, kafka.HeaderFailedAt)
	require.True(t, ok)
	assert.Equal(t, "2026-08-30T10:00:00Z", failedAt)

	var replay replayEnvelope
	require.NoError(t, json.Unmarshal(msg.value, &replay))
	assert.Equal(t, "OrderCreated", replay.EventType)
	assert.Equal(t, "order-1", replay.AggregateID)
}

func TestExtractReplayMessage_IncrementsRetryCount(t *testing.T) {
	raw := dlqMessage(t, dlqPayload{
		AggregateID: "order-2",
		EventType:   "OrderUpdated",
		Payload:     json.RawMessage(`{"order_id":"order-2"}`),
	})

	msg, err := extractReplayMessage(raw, "custom.dlq", 2)
	require.NoError(t, err)

	retry, ok := headerValue(msg.headers, kafka.HeaderRetryCount)
	require.True(t, ok)
	assert.Equal(t, "3", retry)

	// Пустые publish_error и dlq_published_at не дают пустых headers.
	_, ok = headerValue(msg.headers, kafka.HeaderErrorMessage)
	assert.False(t, ok)
	_, ok = headerValue(msg.headers, kafka.HeaderFailedAt)
	assert.False(t, ok)
}

func TestRetryCountFromHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers []*sarama.RecordHeader
		want    int64
	}{
		{"no headers", nil, 0},
		{"valid count", []*sarama.RecordHeader{{Key: []byte(kafka.HeaderRetryCount), Value: []byte("4")}}, 4},
		{"garbage value", []*sarama.RecordHeader{{Key: []byte(kafka.HeaderRetryCount), Value: []byte("many")}}, 0},
		{"negative value", []*sarama.RecordHeader{{Key: []byte(kafka.HeaderRetryCount), Value: []byte("-1")}}, 0},
		{"unrelated header", []*sarama.RecordHeader{{Key: []byte("x-trace-id"), Value: []byte("abc")}}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryCountFromHeaders(tc.headers))
		})
	}
}
