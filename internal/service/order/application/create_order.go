// internal/service/order/application/create_order.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

// ErrDuplicateRequest 表示同一幂等键的创建请求已经处理过。
// HTTP 层将其映射为 409 Conflict。
var ErrDuplicateRequest = errors.New("order with this idempotency key already processed")

// CreateOrderService 是创建订单的应用服务，Saga 的起点。
// 命令侧的幂等是同步的：客户端带 Idempotency-Key 重试时
// 直接收到冲突响应，而不是静默跳过 —— 与消费侧不同，
// 这里有一个可以告知的调用方。
type CreateOrderService struct {
	repo      domain.OrderRepository
	store     idempotency.Store
	publisher eventbus.Publisher
	tracer    trace.Tracer
}

func NewCreateOrderService(repo domain.OrderRepository, store idempotency.Store, publisher eventbus.Publisher, tracer trace.Tracer) *CreateOrderService {
	return &CreateOrderService{repo: repo, store: store, publisher: publisher, tracer: tracer}
}

// CreateOrder 持久化一个 PENDING 订单并发布 OrderCreated。
// correlation_id 在这里新生成，贯穿整条 Saga。
func (s *CreateOrderService) CreateOrder(ctx context.Context, customerID string, items []domain.OrderItem, idempotencyKey string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	if idempotencyKey != "" {
		if _, seen, err := s.store.Seen(ctx, idempotencyKey); err != nil {
			return nil, errors.Wrap(err, "idempotency check")
		} else if seen {
			logger.Ctx(ctx).Warn().
				Str("idempotency_key", idempotencyKey).
				Msg("Duplicate create request")
			return nil, ErrDuplicateRequest
		}
	}

	order, err := domain.NewOrder(customerID, items)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.OrderID))

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "save order")
	}

	if idempotencyKey != "" {
		if err := s.store.Record(ctx, idempotencyKey, order.OrderID); err != nil {
			if errors.Is(err, idempotency.ErrDuplicateKey) {
				return nil, ErrDuplicateRequest
			}
			return nil, errors.Wrap(err, "record idempotency key")
		}
	}

	eventItems := make([]events.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		eventItems = append(eventItems, events.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	// correlation id 留空：发布器为这条新 Saga 生成一个
	if err := s.publisher.Publish(ctx, events.TopicOrders, events.TypeOrderCreated,
		events.Data(events.OrderCreated{
			OrderID:     order.OrderID,
			CustomerID:  order.CustomerID,
			TotalAmount: order.TotalAmount,
			Items:       eventItems,
			Status:      string(order.Status),
		}), ""); err != nil {
		return nil, errors.Wrap(err, "publish OrderCreated")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.OrderID).
		Float64("total_amount", order.TotalAmount).
		Msg("✅ Order created, saga started")
	return order, nil
}
