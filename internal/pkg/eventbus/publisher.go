// internal/pkg/eventbus/publisher.go
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/logger"
)

const (
	publishMaxAttempts = 5
	publishBackoffMin  = 2 * time.Second
	publishBackoffMax  = 10 * time.Second
)

// Publisher 是发布端的出站端口。真实实现写 Kafka，
// 测试使用 membus 里的内存实现。
type Publisher interface {
	// Publish 发布一个事件。correlationID 为空时生成新的链路 ID，
	// 否则原样透传（保证一条 Saga 内 correlation_id 不变）。
	Publish(ctx context.Context, topic, eventType string, data map[string]any, correlationID string) error
}

// KafkaPublisher 把事件信封写入共享事件主题。
// 仅对瞬态的连接类错误做有界指数退避重试，业务性错误立即上抛。
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, eventsTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    eventsTopic,
			Balancer: &kafka.Hash{},
			// broker 确认后才算持久入队
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, eventType string, data map[string]any, correlationID string) error {
	env := NewEnvelope(eventType, data, correlationID)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	routingKey := RoutingKey(topic, eventType)

	headers := KafkaHeaderCarrier{
		{Key: HeaderRoutingKey, Value: []byte(routingKey)},
		{Key: HeaderCorrelationID, Value: []byte(env.CorrelationID)},
	}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := kafka.Message{
		Key:     []byte(routingKey),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}

	backoff := publishBackoffMin
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			publishedTotal.WithLabelValues(topic, eventType).Inc()
			logger.Ctx(ctx).Info().
				Str("routing_key", routingKey).
				Str("correlation_id", env.CorrelationID).
				Msg("Event published")
			return nil
		}
		if !isTransient(err) || attempt == publishMaxAttempts {
			logger.Ctx(ctx).Error().Err(err).
				Str("routing_key", routingKey).
				Int("attempt", attempt).
				Msg("Event publish failed")
			return err
		}
		logger.Ctx(ctx).Warn().Err(err).
			Str("routing_key", routingKey).
			Int("attempt", attempt).
			Msg("Transient publish failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > publishBackoffMax {
			backoff = publishBackoffMax
		}
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// isTransient 判断是否是值得重试的连接层错误。
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
