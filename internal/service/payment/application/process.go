// internal/service/payment/application/process.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/breaker"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/events"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/payment/domain"
)

// ProcessPaymentStep 是扣款这一 Saga 步骤的应用服务。
// 对网关的调用全部经过熔断器：
//   - 熔断器打开 (breaker.ErrOpen)：错误穿出处理器，消息进死信主题，
//     等网关恢复后重放 —— 瞬态故障不走补偿分支。
//   - 业务性拒绝 (domain.DeclinedError) 或其他网关错误：发布
//     OrderRejected 并正常 ack —— 终态失败，不重试。
type ProcessPaymentStep struct {
	gateway   domain.PaymentGateway
	store     idempotency.Store
	publisher eventbus.Publisher
	brk       *breaker.Breaker
	tracer    trace.Tracer
}

func NewProcessPaymentStep(gateway domain.PaymentGateway, store idempotency.Store, publisher eventbus.Publisher, brk *breaker.Breaker, tracer trace.Tracer) *ProcessPaymentStep {
	return &ProcessPaymentStep{gateway: gateway, store: store, publisher: publisher, brk: brk, tracer: tracer}
}

// Execute 处理一条 InventoryReserved 事件，幂等键为 order_id。
func (s *ProcessPaymentStep) Execute(ctx context.Context, orderID string, amount float64, correlationID string) error {
	ctx, span := s.tracer.Start(ctx, "payment.ProcessPayment", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Float64("payment.amount", amount),
	)

	if rec, seen, err := s.store.Seen(ctx, orderID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "idempotency check")
	} else if seen {
		logger.Ctx(ctx).Info().
			Str("order_id", orderID).
			Str("outcome", rec.Outcome).
			Msg("Payment already processed. Skipping.")
		span.AddEvent("Idempotency hit, skipped")
		return nil
	}

	var transactionID string
	err := s.brk.Do(ctx, func(ctx context.Context) error {
		var chargeErr error
		transactionID, chargeErr = s.gateway.Charge(ctx, orderID, amount)
		return chargeErr
	})

	switch {
	case err == nil:
		return s.confirm(ctx, orderID, amount, transactionID, correlationID)

	case errors.Is(err, breaker.ErrOpen):
		// 快速失败：让消息进死信，网关恢复后可重放
		logger.Ctx(ctx).Warn().
			Str("order_id", orderID).
			Msg("🚨 Circuit breaker OPEN. Payment deferred to DLQ.")
		span.SetStatus(codes.Error, "circuit open")
		return err

	default:
		// 业务拒绝或网关错误都是这条 Saga 分支的终态
		logger.Ctx(ctx).Warn().Err(err).
			Str("order_id", orderID).
			Msg("Payment failed")
		span.AddEvent("Payment failed, compensating")
		return s.reject(ctx, orderID, "Payment Failed: "+err.Error(), correlationID)
	}
}

func (s *ProcessPaymentStep) confirm(ctx context.Context, orderID string, amount float64, transactionID, correlationID string) error {
	if err := s.store.Record(ctx, orderID, "CONFIRMED"); err != nil {
		if errors.Is(err, idempotency.ErrDuplicateKey) {
			logger.Ctx(ctx).Warn().Str("order_id", orderID).Msg("Concurrent duplicate detected at record time")
			return nil
		}
		return errors.Wrap(err, "record idempotency key")
	}

	if err := s.publisher.Publish(ctx, events.TopicPayments, events.TypeOrderConfirmed,
		events.Data(events.OrderConfirmed{
			OrderID:       orderID,
			Status:        "CONFIRMED",
			TransactionID: transactionID,
			TotalAmount:   amount,
		}), correlationID); err != nil {
		return errors.Wrap(err, "publish OrderConfirmed")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("transaction_id", transactionID).
		Msg("✅ Payment succeeded")
	return nil
}

func (s *ProcessPaymentStep) reject(ctx context.Context, orderID, reason, correlationID string) error {
	if err := s.store.Record(ctx, orderID, "REJECTED"); err != nil && !errors.Is(err, idempotency.ErrDuplicateKey) {
		return errors.Wrap(err, "record rejection")
	}

	if err := s.publisher.Publish(ctx, events.TopicPayments, events.TypeOrderRejected,
		events.Data(events.OrderRejected{OrderID: orderID, Reason: reason}), correlationID); err != nil {
		return errors.Wrap(err, "publish OrderRejected")
	}
	return nil
}
