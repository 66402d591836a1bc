package eventbus_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/eventbus"
)

func TestNewEnvelope(t *testing.T) {
	t.Run("generates correlation id when absent", func(t *testing.T) {
		env := eventbus.NewEnvelope("OrderCreated", map[string]any{"order_id": "O1"}, "")
		require.NotEmpty(t, env.CorrelationID)
		_, err := uuid.Parse(env.CorrelationID)
		assert.NoError(t, err)
		_, err = uuid.Parse(env.EventID)
		assert.NoError(t, err)
	})

	t.Run("propagates correlation id unchanged", func(t *testing.T) {
		corrID := uuid.NewString()
		env := eventbus.NewEnvelope("InventoryReserved", nil, corrID)
		assert.Equal(t, corrID, env.CorrelationID)
	})

	t.Run("unique event id per publish", func(t *testing.T) {
		a := eventbus.NewEnvelope("OrderCreated", nil, "")
		b := eventbus.NewEnvelope("OrderCreated", nil, "")
		assert.NotEqual(t, a.EventID, b.EventID)
	})

	t.Run("timestamp is RFC3339", func(t *testing.T) {
		env := eventbus.NewEnvelope("OrderCreated", nil, "")
		_, err := time.Parse(time.RFC3339Nano, env.Timestamp)
		assert.NoError(t, err)
	})
}

func TestEnvelopeWireFormat(t *testing.T) {
	env := eventbus.NewEnvelope("OrderConfirmed", map[string]any{"order_id": "O1", "transaction_id": "trans_42"}, "corr-1")
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, field := range []string{"event_id", "event_type", "timestamp", "data", "correlation_id"} {
		assert.Contains(t, decoded, field)
	}
	assert.Equal(t, "OrderConfirmed", decoded["event_type"])
}

func TestEnvelopeDecodeData(t *testing.T) {
	env := eventbus.NewEnvelope("OrderCreated", map[string]any{
		"order_id":     "O1",
		"total_amount": 99.5,
	}, "")

	var payload struct {
		OrderID     string  `json:"order_id"`
		TotalAmount float64 `json:"total_amount"`
	}
	require.NoError(t, env.DecodeData(&payload))
	assert.Equal(t, "O1", payload.OrderID)
	assert.Equal(t, 99.5, payload.TotalAmount)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "orders.OrderCreated", eventbus.RoutingKey("orders", "OrderCreated"))
	assert.Equal(t, "payments.OrderConfirmed", eventbus.RoutingKey("payments", "OrderConfirmed"))
}
