// internal/service/inventory/application/reserve.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/inventory/domain"
)

// KeyLocker 把同一业务键上的执行串行化。
// 幂等检查与领域写入不在一个事务里，锁缩小了并发重复投递的
// 双重执行窗口；幂等存储的唯一约束仍是最终防线。
type KeyLocker interface {
	WithLock(key string, fn func() error) error
}

// NoopLocker 在没有配置分布式锁时使用。
type NoopLocker struct{}

func (NoopLocker) WithLock(key string, fn func() error) error { return fn() }

// ReserveInventoryStep 是库存预占这一 Saga 步骤的应用服务。
// 以 order_id 为幂等键：重复投递同一订单时直接跳过，
// 保证库存扣减至多发生一次。
type ReserveInventoryStep struct {
	repo      domain.ProductRepository
	store     idempotency.Store
	publisher eventbus.Publisher
	locker    KeyLocker
	tracer    trace.Tracer
}

func NewReserveInventoryStep(repo domain.ProductRepository, store idempotency.Store, publisher eventbus.Publisher, locker KeyLocker, tracer trace.Tracer) *ReserveInventoryStep {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &ReserveInventoryStep{repo: repo, store: store, publisher: publisher, locker: locker, tracer: tracer}
}

// Execute 处理一条 OrderCreated 事件。
// 校验策略是 fail-fast：第一个缺失或库存不足的条目使整单预占
// 失败，任何商品的库存都不被扣减（没有部分预占）。
func (s *ReserveInventoryStep) Execute(ctx context.Context, orderID string, items []domain.ReservationItem, totalAmount float64, correlationID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.ReserveInventory", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	return s.locker.WithLock(orderID, func() error {
		return s.execute(ctx, orderID, items, totalAmount, correlationID)
	})
}

func (s *ReserveInventoryStep) execute(ctx context.Context, orderID string, items []domain.ReservationItem, totalAmount float64, correlationID string) error {
	span := trace.SpanFromContext(ctx)

	// 1. 幂等检查：键存在说明业务效果已经执行过，无动作、非错误
	if rec, seen, err := s.store.Seen(ctx, orderID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "idempotency check")
	} else if seen {
		logger.Ctx(ctx).Info().
			Str("order_id", orderID).
			Str("outcome", rec.Outcome).
			Msg("Order already processed. Skipping.")
		span.AddEvent("Idempotency hit, skipped")
		return nil
	}

	// 2. fail-fast 校验所有条目。基础设施错误原样上抛（进 DLQ 可重放），
	//    只有业务性原因才走 reject 终态
	reason, err := s.checkAvailability(ctx, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stock lookup failed")
		return errors.Wrap(err, "check availability")
	}
	if reason != "" {
		return s.reject(ctx, orderID, reason, correlationID)
	}

	// 3. 原子扣减全部条目
	if err := s.repo.ReserveItems(ctx, items); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrProductNotFound) {
			// 校验和扣减之间库存被并发消耗了
			return s.reject(ctx, orderID, err.Error(), correlationID)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Inventory reservation failed")
		return errors.Wrap(err, "reserve items")
	}

	// 4. 记录幂等键，再发布结果事件
	if err := s.store.Record(ctx, orderID, "RESERVED"); err != nil {
		if errors.Is(err, idempotency.ErrDuplicateKey) {
			logger.Ctx(ctx).Warn().Str("order_id", orderID).Msg("Concurrent duplicate detected at record time")
			return nil
		}
		span.RecordError(err)
		return errors.Wrap(err, "record idempotency key")
	}

	if err := s.publisher.Publish(ctx, events.TopicInventory, events.TypeInventoryReserved,
		events.Data(events.InventoryReserved{OrderID: orderID, TotalAmount: totalAmount}), correlationID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "publish InventoryReserved")
	}

	logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("Inventory reserved")
	span.AddEvent("All items reserved successfully")
	return nil
}

// checkAvailability 返回第一个不满足条件的业务原因，全部满足时返回空串。
// 查询本身失败不是业务结论，返回 error 交由上层重试/重放。
func (s *ReserveInventoryStep) checkAvailability(ctx context.Context, items []domain.ReservationItem) (string, error) {
	for _, item := range items {
		product, err := s.repo.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return fmt.Sprintf("product %s not found", item.ProductID), nil
			}
			return "", errors.Wrapf(err, "find product %s", item.ProductID)
		}
		if !product.HasSufficientStock(item.Quantity) {
			return fmt.Sprintf("insufficient stock for product %s", item.ProductID), nil
		}
	}
	return "", nil
}

// reject 把订单标记为已处理 (REJECTED) 并发布补偿事件。
// 业务性失败对这条 Saga 分支是终态：消息会被正常 ack，不再重试。
func (s *ReserveInventoryStep) reject(ctx context.Context, orderID, reason, correlationID string) error {
	if err := s.store.Record(ctx, orderID, "REJECTED"); err != nil && !errors.Is(err, idempotency.ErrDuplicateKey) {
		return errors.Wrap(err, "record rejection")
	}

	if err := s.publisher.Publish(ctx, events.TopicInventory, events.TypeOrderRejected,
		events.Data(events.OrderRejected{OrderID: orderID, Reason: reason}), correlationID); err != nil {
		return errors.Wrap(err, "publish OrderRejected")
	}

	logger.Ctx(ctx).Warn().
		Str("order_id", orderID).
		Str("reason", reason).
		Msg("Order rejected")
	return nil
}
