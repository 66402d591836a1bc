// internal/service/order/application/projection.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

// StatusCache 是订单状态缓存的出站端口（Redis 实现）。
type StatusCache interface {
	GetStatus(ctx context.Context, orderID string) (domain.Status, bool, error)
	SetStatus(ctx context.Context, orderID string, status domain.Status) error
	Invalidate(ctx context.Context, orderID string) error
}

// StatusProjection 消费 Saga 的状态事件，把结果投影到订单聚合上。
// 更新策略是 last-write-wins：投影只反映最近一次收到的状态，
// 不做跨路由键的顺序协调。
type StatusProjection struct {
	repo   domain.OrderRepository
	cache  StatusCache
	tracer trace.Tracer
}

func NewStatusProjection(repo domain.OrderRepository, cache StatusCache, tracer trace.Tracer) *StatusProjection {
	return &StatusProjection{repo: repo, cache: cache, tracer: tracer}
}

// ApplyStatusEvent 把一条状态事件落到订单上。
// 订单不存在时 warn 并跳过：乱序或外部系统的事件不该毒化队列。
func (p *StatusProjection) ApplyStatusEvent(ctx context.Context, eventType, orderID, reason string) error {
	ctx, span := p.tracer.Start(ctx, "order.ApplyStatusEvent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("event.type", eventType),
	)

	status, ok := domain.StatusFor(eventType)
	if !ok {
		logger.Ctx(ctx).Warn().
			Str("event_type", eventType).
			Msg("Unknown status event type, skipping")
		return nil
	}

	err := p.repo.UpdateStatus(ctx, orderID, status, reason)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			logger.Ctx(ctx).Warn().
				Str("order_id", orderID).
				Str("event_type", eventType).
				Msg("Status event for unknown order, skipping")
			return nil
		}
		span.RecordError(err)
		return errors.Wrap(err, "update order status")
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, orderID); err != nil {
			// 缓存失效失败只影响读侧新鲜度，不值得死信
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Cache invalidation failed")
		}
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("status", string(status)).
		Msg("Order status projected")
	return nil
}

// OrderQuery 是读侧服务：状态查询走 Redis read-through。
type OrderQuery struct {
	repo  domain.OrderRepository
	cache StatusCache
}

func NewOrderQuery(repo domain.OrderRepository, cache StatusCache) *OrderQuery {
	return &OrderQuery{repo: repo, cache: cache}
}

// GetOrder 返回订单聚合，状态以持久层为准。
func (q *OrderQuery) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return q.repo.FindByID(ctx, orderID)
}

// GetStatus 查询订单状态，缓存命中时不触达数据库。
func (q *OrderQuery) GetStatus(ctx context.Context, orderID string) (domain.Status, error) {
	if q.cache != nil {
		if status, ok, err := q.cache.GetStatus(ctx, orderID); err == nil && ok {
			return status, nil
		}
	}

	order, err := q.repo.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if q.cache != nil {
		if err := q.cache.SetStatus(ctx, orderID, order.Status); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Cache write failed")
		}
	}
	return order.Status, nil
}
