package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/events"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
)

func seedOrder(t *testing.T, repo *infrastructure.MemoryOrderRepository) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("customer-1", []domain.OrderItem{{ProductID: "p-1", Quantity: 1, Price: 10}})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), order))
	return order
}

func TestProjection_AppliesStatusEvents(t *testing.T) {
	repo := infrastructure.NewMemoryOrderRepository()
	projection := application.NewStatusProjection(repo, nil, otel.Tracer("order-test"))
	order := seedOrder(t, repo)

	cases := []struct {
		eventType string
		want      domain.Status
	}{
		{events.TypeInventoryReserved, domain.StatusReserved},
		{events.TypeOrderConfirmed, domain.StatusConfirmed},
		{events.TypeOrderRejected, domain.StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			require.NoError(t, projection.ApplyStatusEvent(context.Background(), tc.eventType, order.OrderID, ""))
			got, err := repo.FindByID(context.Background(), order.OrderID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Status)
		})
	}
}

func TestProjection_LastWriteWins(t *testing.T) {
	repo := infrastructure.NewMemoryOrderRepository()
	projection := application.NewStatusProjection(repo, nil, otel.Tracer("order-test"))
	order := seedOrder(t, repo)

	// 乱序到达：先确认后预占，投影反映最后一次写入
	require.NoError(t, projection.ApplyStatusEvent(context.Background(), events.TypeOrderConfirmed, order.OrderID, ""))
	require.NoError(t, projection.ApplyStatusEvent(context.Background(), events.TypeInventoryReserved, order.OrderID, ""))

	got, err := repo.FindByID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, got.Status)
}

func TestProjection_UnknownOrderIsSkipped(t *testing.T) {
	repo := infrastructure.NewMemoryOrderRepository()
	projection := application.NewStatusProjection(repo, nil, otel.Tracer("order-test"))

	err := projection.ApplyStatusEvent(context.Background(), events.TypeOrderConfirmed, "ghost-order", "")
	assert.NoError(t, err, "events for unknown orders must not poison the queue")
}

func TestProjection_UnknownEventTypeIsSkipped(t *testing.T) {
	repo := infrastructure.NewMemoryOrderRepository()
	projection := application.NewStatusProjection(repo, nil, otel.Tracer("order-test"))
	order := seedOrder(t, repo)

	require.NoError(t, projection.ApplyStatusEvent(context.Background(), "SomethingElse", order.OrderID, ""))

	got, err := repo.FindByID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestProjection_RecordsRejectReason(t *testing.T) {
	repo := infrastructure.NewMemoryOrderRepository()
	projection := application.NewStatusProjection(repo, nil, otel.Tracer("order-test"))
	order := seedOrder(t, repo)

	require.NoError(t, projection.ApplyStatusEvent(context.Background(), events.TypeOrderRejected, order.OrderID, "insufficient stock for product p-1"))

	got, err := repo.FindByID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Equal(t, "insufficient stock for product p-1", got.RejectReason)
}
