package application_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/eventbus/membus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/service/inventory/application"
	"orderflow/internal/service/inventory/domain"
	"orderflow/internal/service/inventory/infrastructure"
	"orderflow/internal/service/inventory/interfaces"
)

func newFixture(t *testing.T) (*membus.Bus, *infrastructure.MemoryProductRepository, *idempotency.MemoryStore) {
	t.Helper()
	bus := membus.New()
	repo := infrastructure.NewMemoryProductRepository()
	store := idempotency.NewMemoryStore()

	step := application.NewReserveInventoryStep(repo, store, bus, nil, otel.Tracer("inventory-test"))
	handler := interfaces.NewEventHandler(step)
	bus.Subscribe("inventory_service", []string{interfaces.RouteOrderCreated}, handler.Handle)
	return bus, repo, store
}

func seed(t *testing.T, repo *infrastructure.MemoryProductRepository, productID string, stock int) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), &domain.Product{ProductID: productID, Name: productID, Stock: stock}))
}

func publishOrderCreated(t *testing.T, bus *membus.Bus, orderID string, items []events.OrderItem) {
	t.Helper()
	err := bus.Publish(context.Background(), events.TopicOrders, events.TypeOrderCreated,
		events.Data(events.OrderCreated{
			OrderID:     orderID,
			CustomerID:  "customer-1",
			TotalAmount: 99.5,
			Items:       items,
			Status:      "PENDING",
		}), "")
	require.NoError(t, err)
}

func TestReserveInventory_Success(t *testing.T) {
	bus, repo, store := newFixture(t)
	seed(t, repo, "p-1", 100)

	publishOrderCreated(t, bus, "order-1", []events.OrderItem{{ProductID: "p-1", Quantity: 30}})

	product, err := repo.FindByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 70, product.Stock)

	reserved := bus.ByType(events.TypeInventoryReserved)
	require.Len(t, reserved, 1)
	var payload events.InventoryReserved
	require.NoError(t, reserved[0].Envelope.DecodeData(&payload))
	assert.Equal(t, "order-1", payload.OrderID)
	assert.Equal(t, 99.5, payload.TotalAmount)
	assert.Equal(t, events.TopicInventory, reserved[0].Topic)

	rec, seen, err := store.Seen(context.Background(), "order-1")
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, "RESERVED", rec.Outcome)
}

func TestReserveInventory_RedeliveryIsIdempotent(t *testing.T) {
	bus, repo, _ := newFixture(t)
	seed(t, repo, "p-1", 100)

	publishOrderCreated(t, bus, "order-1", []events.OrderItem{{ProductID: "p-1", Quantity: 30}})

	created := bus.ByType(events.TypeOrderCreated)
	require.Len(t, created, 1)

	// broker 的 at-least-once 语义：同一条消息投两次
	bus.Redeliver(context.Background(), created[0])
	bus.Redeliver(context.Background(), created[0])

	product, err := repo.FindByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 70, product.Stock, "redelivery must not deduct stock again")
	assert.Len(t, bus.ByType(events.TypeInventoryReserved), 1, "business event published once")
	assert.Empty(t, bus.DeadLetters("inventory_service"))
}

func TestReserveInventory_InsufficientStockRejects(t *testing.T) {
	bus, repo, store := newFixture(t)
	seed(t, repo, "p-1", 5)

	publishOrderCreated(t, bus, "order-2", []events.OrderItem{{ProductID: "p-1", Quantity: 30}})

	product, err := repo.FindByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, product.Stock)

	rejected := bus.ByType(events.TypeOrderRejected)
	require.Len(t, rejected, 1)
	var payload events.OrderRejected
	require.NoError(t, rejected[0].Envelope.DecodeData(&payload))
	assert.Equal(t, "order-2", payload.OrderID)
	assert.Contains(t, payload.Reason, "insufficient stock")

	rec, seen, err := store.Seen(context.Background(), "order-2")
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, "REJECTED", rec.Outcome)
}

func TestReserveInventory_NoPartialReservation(t *testing.T) {
	bus, repo, _ := newFixture(t)
	seed(t, repo, "p-1", 100)
	seed(t, repo, "p-2", 1)

	publishOrderCreated(t, bus, "order-3", []events.OrderItem{
		{ProductID: "p-1", Quantity: 10},
		{ProductID: "p-2", Quantity: 5},
	})

	p1, err := repo.FindByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 100, p1.Stock, "first item must not be deducted when a later item fails")

	require.Len(t, bus.ByType(events.TypeOrderRejected), 1)
	assert.Empty(t, bus.ByType(events.TypeInventoryReserved))
}

func TestReserveInventory_UnknownProductRejects(t *testing.T) {
	bus, _, _ := newFixture(t)

	publishOrderCreated(t, bus, "order-4", []events.OrderItem{{ProductID: "ghost", Quantity: 1}})

	rejected := bus.ByType(events.TypeOrderRejected)
	require.Len(t, rejected, 1)
	var payload events.OrderRejected
	require.NoError(t, rejected[0].Envelope.DecodeData(&payload))
	assert.Contains(t, payload.Reason, "not found")
}

// flakyRepo 在开关打开时让读库失败，模拟数据库瞬断。
type flakyRepo struct {
	*infrastructure.MemoryProductRepository
	failFind bool
}

func (r *flakyRepo) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	if r.failFind {
		return nil, stderrors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	}
	return r.MemoryProductRepository.FindByID(ctx, productID)
}

func TestReserveInventory_LookupFailureDeadLettersNotRejects(t *testing.T) {
	bus := membus.New()
	repo := &flakyRepo{MemoryProductRepository: infrastructure.NewMemoryProductRepository()}
	store := idempotency.NewMemoryStore()

	step := application.NewReserveInventoryStep(repo, store, bus, nil, otel.Tracer("inventory-test"))
	handler := interfaces.NewEventHandler(step)
	bus.Subscribe("inventory_service", []string{interfaces.RouteOrderCreated}, handler.Handle)

	seed(t, repo.MemoryProductRepository, "p-1", 100)
	repo.failFind = true

	publishOrderCreated(t, bus, "order-6", []events.OrderItem{{ProductID: "p-1", Quantity: 30}})

	// 瞬时基础设施故障不是业务结论：不得发 OrderRejected，也不得写幂等键
	assert.Empty(t, bus.ByType(events.TypeOrderRejected))
	require.Len(t, bus.DeadLetters("inventory_service"), 1)
	_, seen, err := store.Seen(context.Background(), "order-6")
	require.NoError(t, err)
	assert.False(t, seen, "failed lookup must not mark the order as processed")

	// 数据库恢复后重放死信，预占正常完成
	repo.failFind = false
	created := bus.ByType(events.TypeOrderCreated)
	require.Len(t, created, 1)
	bus.Redeliver(context.Background(), created[0])

	product, err := repo.FindByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 70, product.Stock)
	require.Len(t, bus.ByType(events.TypeInventoryReserved), 1)
	rec, seen, err := store.Seen(context.Background(), "order-6")
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, "RESERVED", rec.Outcome)
}

func TestReserveInventory_CorrelationIDPropagates(t *testing.T) {
	bus, repo, _ := newFixture(t)
	seed(t, repo, "p-1", 100)

	err := bus.Publish(context.Background(), events.TopicOrders, events.TypeOrderCreated,
		events.Data(events.OrderCreated{
			OrderID: "order-5",
			Items:   []events.OrderItem{{ProductID: "p-1", Quantity: 1}},
		}), "corr-abc")
	require.NoError(t, err)

	reserved := bus.ByType(events.TypeInventoryReserved)
	require.Len(t, reserved, 1)
	assert.Equal(t, "corr-abc", reserved[0].CorrelationID)
}

// 编译期检查：内存实现满足领域端口，ZK 适配器满足 KeyLocker。
var (
	_ domain.ProductRepository = (*infrastructure.MemoryProductRepository)(nil)
	_ application.KeyLocker    = (*infrastructure.ZkKeyLocker)(nil)
	_ eventbus.Publisher       = (*membus.Bus)(nil)
)
