// internal/service/notification/application/notify.go
package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/notification/domain"
)

// ChannelBinding 把一个渠道和它的过滤器绑在一起。
// Filter 为 nil 表示该渠道接收所有通知。
type ChannelBinding struct {
	Channel domain.Channel
	Filter  domain.Filter
}

// NotifyService 把状态事件翻译后广播到所有匹配的渠道。
// 投递是尽力而为：单个渠道失败只记日志，
// 绝不让消息进死信 —— 通知丢一条比卡住整个队列便宜。
type NotifyService struct {
	bindings []ChannelBinding
	tracer   trace.Tracer
}

func NewNotifyService(bindings []ChannelBinding, tracer trace.Tracer) *NotifyService {
	return &NotifyService{bindings: bindings, tracer: tracer}
}

// Notify 翻译事件并扇出。永远返回 nil。
func (s *NotifyService) Notify(ctx context.Context, eventType, correlationID string, data map[string]any) error {
	ctx, span := s.tracer.Start(ctx, "notification.Notify", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("event.type", eventType))

	n := domain.Notification{
		EventType:     eventType,
		OrderID:       stringField(data, "order_id", ""),
		Message:       Translate(eventType, data),
		CorrelationID: correlationID,
		Data:          data,
	}

	logger.Ctx(ctx).Info().
		Str("event_type", eventType).
		Str("order_id", n.OrderID).
		Msg("Broadcasting notification")

	for _, b := range s.bindings {
		if b.Filter != nil {
			match, err := b.Filter.Match(n)
			if err != nil {
				logger.Ctx(ctx).Error().Err(err).
					Str("channel", b.Channel.Name()).
					Msg("Channel filter failed, skipping channel")
				continue
			}
			if !match {
				continue
			}
		}
		if err := b.Channel.Send(ctx, n); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("channel", b.Channel.Name()).
				Str("order_id", n.OrderID).
				Msg("Channel delivery failed")
		}
	}
	return nil
}
