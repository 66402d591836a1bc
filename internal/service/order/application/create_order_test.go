package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/eventbus/membus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
)

func newCreateFixture(t *testing.T) (*application.CreateOrderService, *membus.Bus, *infrastructure.MemoryOrderRepository) {
	t.Helper()
	bus := membus.New()
	repo := infrastructure.NewMemoryOrderRepository()
	store := idempotency.NewMemoryStore()
	svc := application.NewCreateOrderService(repo, store, bus, otel.Tracer("order-test"))
	return svc, bus, repo
}

func TestCreateOrder_PersistsAndPublishes(t *testing.T) {
	svc, bus, repo := newCreateFixture(t)

	order, err := svc.CreateOrder(context.Background(), "customer-1", []domain.OrderItem{
		{ProductID: "p-1", Quantity: 2, Price: 29.99},
		{ProductID: "p-2", Quantity: 1, Price: 10.02},
	}, "")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.InDelta(t, 70.0, order.TotalAmount, 1e-9)

	saved, err := repo.FindByID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, saved.Status)

	created := bus.ByType(events.TypeOrderCreated)
	require.Len(t, created, 1)
	var payload events.OrderCreated
	require.NoError(t, created[0].Envelope.DecodeData(&payload))
	assert.Equal(t, order.OrderID, payload.OrderID)
	assert.Equal(t, "customer-1", payload.CustomerID)
	assert.Len(t, payload.Items, 2)
	assert.NotEmpty(t, created[0].CorrelationID, "a fresh saga gets a correlation id")
}

func TestCreateOrder_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	svc, bus, _ := newCreateFixture(t)

	items := []domain.OrderItem{{ProductID: "p-1", Quantity: 1, Price: 5}}
	_, err := svc.CreateOrder(context.Background(), "customer-1", items, "idem-1")
	require.NoError(t, err)

	_, err = svc.CreateOrder(context.Background(), "customer-1", items, "idem-1")
	require.ErrorIs(t, err, application.ErrDuplicateRequest)

	assert.Len(t, bus.ByType(events.TypeOrderCreated), 1, "duplicate request must not start a second saga")
}

func TestCreateOrder_RejectsInvalidInput(t *testing.T) {
	svc, _, _ := newCreateFixture(t)

	_, err := svc.CreateOrder(context.Background(), "customer-1", nil, "")
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = svc.CreateOrder(context.Background(), "customer-1", []domain.OrderItem{{ProductID: "p-1", Quantity: 0, Price: 5}}, "")
	assert.Error(t, err)
}
