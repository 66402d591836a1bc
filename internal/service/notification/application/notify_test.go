package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/eventbus/membus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/service/notification/application"
	"orderflow/internal/service/notification/domain"
	"orderflow/internal/service/notification/infrastructure"
	"orderflow/internal/service/notification/interfaces"
)

// recordingChannel 记录收到的通知，可配置为总是失败。
type recordingChannel struct {
	mu   sync.Mutex
	name string
	sent []domain.Notification
	fail bool
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, n domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("channel unavailable")
	}
	c.sent = append(c.sent, n)
	return nil
}

func (c *recordingChannel) received() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Notification(nil), c.sent...)
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		data      map[string]any
		want      string
	}{
		{
			name:      "order created",
			eventType: "OrderCreated",
			data:      map[string]any{"order_id": "o-1", "total_amount": 99.5},
			want:      "🆕 New order received! ID: o-1. Total: $99.5. Awaiting processing.",
		},
		{
			name:      "order confirmed",
			eventType: "OrderConfirmed",
			data:      map[string]any{"order_id": "o-1", "transaction_id": "trans_7"},
			want:      "✅ Order o-1 confirmed! Payment succeeded (Txn: trans_7). Preparing shipment.",
		},
		{
			name:      "order rejected",
			eventType: "OrderRejected",
			data:      map[string]any{"order_id": "o-1", "reason": "insufficient stock"},
			want:      "❌ Order o-1 failed. Reason: insufficient stock. Please check the system logs.",
		},
		{
			name:      "unknown event falls back",
			eventType: "OrderShipped",
			data:      map[string]any{"order_id": "o-1"},
			want:      "ℹ️ Order o-1 update: OrderShipped",
		},
		{
			name:      "missing fields use placeholders",
			eventType: "OrderRejected",
			data:      map[string]any{},
			want:      "❌ Order Unknown failed. Reason: unknown reason. Please check the system logs.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, application.Translate(tc.eventType, tc.data))
		})
	}
}

func TestNotify_FanOutReachesAllChannels(t *testing.T) {
	slack := &recordingChannel{name: "slack"}
	email := &recordingChannel{name: "email"}
	svc := application.NewNotifyService([]application.ChannelBinding{
		{Channel: slack},
		{Channel: email},
	}, otel.Tracer("notification-test"))

	err := svc.Notify(context.Background(), "OrderConfirmed", "corr-1",
		map[string]any{"order_id": "o-1", "transaction_id": "t-1"})
	require.NoError(t, err)

	require.Len(t, slack.received(), 1)
	require.Len(t, email.received(), 1)
	assert.Equal(t, "corr-1", slack.received()[0].CorrelationID)
	assert.Contains(t, slack.received()[0].Message, "confirmed")
}

func TestNotify_ChannelFailureIsIsolated(t *testing.T) {
	broken := &recordingChannel{name: "slack", fail: true}
	healthy := &recordingChannel{name: "email"}
	svc := application.NewNotifyService([]application.ChannelBinding{
		{Channel: broken},
		{Channel: healthy},
	}, otel.Tracer("notification-test"))

	err := svc.Notify(context.Background(), "OrderCreated", "",
		map[string]any{"order_id": "o-2", "total_amount": 10})
	assert.NoError(t, err, "channel failures must never dead-letter the event")
	assert.Len(t, healthy.received(), 1, "remaining channels still receive the notification")
}

func TestNotify_CELFilterSelectsChannel(t *testing.T) {
	rejectedOnly, err := infrastructure.NewCELFilter(`event_type == "OrderRejected"`)
	require.NoError(t, err)

	alerts := &recordingChannel{name: "slack"}
	svc := application.NewNotifyService([]application.ChannelBinding{
		{Channel: alerts, Filter: rejectedOnly},
	}, otel.Tracer("notification-test"))

	require.NoError(t, svc.Notify(context.Background(), "OrderConfirmed", "", map[string]any{"order_id": "o-1"}))
	assert.Empty(t, alerts.received())

	require.NoError(t, svc.Notify(context.Background(), "OrderRejected", "", map[string]any{"order_id": "o-1", "reason": "boom"}))
	require.Len(t, alerts.received(), 1)
}

func TestNotify_CELFilterOnPayload(t *testing.T) {
	bigOrders, err := infrastructure.NewCELFilter(`event_type == "OrderCreated" && double(data.total_amount) > 1000.0`)
	require.NoError(t, err)

	vip := &recordingChannel{name: "email"}
	svc := application.NewNotifyService([]application.ChannelBinding{
		{Channel: vip, Filter: bigOrders},
	}, otel.Tracer("notification-test"))

	require.NoError(t, svc.Notify(context.Background(), "OrderCreated", "", map[string]any{"order_id": "o-1", "total_amount": 50.0}))
	require.NoError(t, svc.Notify(context.Background(), "OrderCreated", "", map[string]any{"order_id": "o-2", "total_amount": 2500.0}))

	require.Len(t, vip.received(), 1)
	assert.Equal(t, "o-2", vip.received()[0].OrderID)
}

func TestCELFilter_RejectsInvalidExpression(t *testing.T) {
	_, err := infrastructure.NewCELFilter(`event_type +`)
	assert.Error(t, err)

	_, err = infrastructure.NewCELFilter(`order_id`)
	assert.Error(t, err, "non-bool expressions are rejected at build time")
}

func TestNotification_ReceivesAllSagaEvents(t *testing.T) {
	bus := membus.New()
	sink := &recordingChannel{name: "log"}
	svc := application.NewNotifyService([]application.ChannelBinding{{Channel: sink}}, otel.Tracer("notification-test"))
	bus.Subscribe("notification_service", interfaces.Routes, interfaces.NewEventHandler(svc).Handle)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.TopicOrders, events.TypeOrderCreated,
		events.Data(events.OrderCreated{OrderID: "o-1", TotalAmount: 10}), "corr-x"))
	require.NoError(t, bus.Publish(ctx, events.TopicPayments, events.TypeOrderConfirmed,
		events.Data(events.OrderConfirmed{OrderID: "o-1", TransactionID: "t-1"}), "corr-x"))
	require.NoError(t, bus.Publish(ctx, events.TopicInventory, events.TypeOrderRejected,
		events.Data(events.OrderRejected{OrderID: "o-2", Reason: "no stock"}), "corr-y"))
	// InventoryReserved 不在通知绑定里
	require.NoError(t, bus.Publish(ctx, events.TopicInventory, events.TypeInventoryReserved,
		events.Data(events.InventoryReserved{OrderID: "o-1"}), "corr-x"))

	got := sink.received()
	require.Len(t, got, 3)
	assert.Equal(t, "OrderCreated", got[0].EventType)
	assert.Equal(t, "OrderConfirmed", got[1].EventType)
	assert.Equal(t, "OrderRejected", got[2].EventType)
}
