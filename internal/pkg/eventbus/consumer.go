// internal/pkg/eventbus/consumer.go
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/logger"
)

// Delivery 是投递给处理器的一条已解码消息。
type Delivery struct {
	Envelope      Envelope
	RoutingKey    string
	CorrelationID string

	raw kafka.Message
}

// DecodeData 把事件载荷解码到具体的结构体。
func (d Delivery) DecodeData(v any) error {
	return d.Envelope.DecodeData(v)
}

// Handler 处理一条投递。返回非 nil 错误时消息被送入死信主题，
// 不会在主队列里重试 —— 需要重试的处理器自己在返回前重试。
type Handler func(ctx context.Context, d Delivery) error

// Consumer 以 "{service}_queue" 消费组消费共享事件主题，
// 一次只拉取、处理并提交一条消息（严格背压，对应 prefetch=1）。
// 路由键不匹配任何绑定模式的消息直接提交跳过 ——
// 在 AMQP broker 上这类消息根本不会进入本服务的队列。
type Consumer struct {
	serviceName string
	brokers     []string
	eventsTopic string
	failures    *FailureHandler

	patterns []string

	reader  *kafka.Reader
	wg      sync.WaitGroup
	stopped bool
}

func NewConsumer(brokers []string, eventsTopic, serviceName string, failures *FailureHandler) *Consumer {
	return &Consumer{
		serviceName: serviceName,
		brokers:     brokers,
		eventsTopic: eventsTopic,
		failures:    failures,
	}
}

// BindRoute 订阅一个额外的路由模式。须在 Start 之前调用。
func (c *Consumer) BindRoute(pattern string) {
	c.patterns = append(c.patterns, pattern)
}

// Start 启动消费循环。这是一个长期运行的后台任务，
// 通过 cancel ctx + Stop 关停。
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	if len(c.patterns) == 0 {
		return fmt.Errorf("consumer %s has no bound routes", c.serviceName)
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers: c.brokers,
		GroupID: fmt.Sprintf("%s_queue", c.serviceName),
		Topic:   c.eventsTopic,
		// 每次只预取一条，处理完再拉下一条
		QueueCapacity: 1,
		MinBytes:      1,
		MaxBytes:      10 << 20,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().
			Str("topic", c.eventsTopic).
			Strs("patterns", c.patterns).
			Msgf("✅ Consumer started for service '%s'.", c.serviceName)
		for {
			if c.stopped {
				return
			}
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 Consumer shutting down.")
					return
				}
				// 连接中断：reader 内部会重连，这里只避免快速失败循环。
				// 未提交的消息由 broker 重新投递。
				logger.Ctx(ctx).Warn().Err(err).Msg("Fetch failed, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			if c.process(ctx, msg, handler) {
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit message")
				}
			}
		}
	}()
	return nil
}

// process 处理一条消息，返回是否应当提交 offset。
// 仅当死信写入也失败时返回 false，让 broker 重新投递，
// 保证失败消息永远不会被悄悄丢弃。
func (c *Consumer) process(parentCtx context.Context, msg kafka.Message, handler Handler) bool {
	routingKey := headerValue(msg, HeaderRoutingKey)
	if routingKey == "" {
		routingKey = string(msg.Key)
	}
	if !c.matches(routingKey) {
		return true
	}

	propagator := otel.GetTextMapPropagator()
	carrier := KafkaHeaderCarrier(msg.Headers)
	ctx := propagator.Extract(parentCtx, &carrier)

	consumedTotal.WithLabelValues(c.serviceName).Inc()

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		// 畸形消息按处理失败对待：死信，绝不吞掉
		logger.Ctx(ctx).Error().Err(err).
			Str("routing_key", routingKey).
			Msg("Malformed envelope")
		return c.deadLetter(ctx, msg, err)
	}

	d := Delivery{
		Envelope:      env,
		RoutingKey:    routingKey,
		CorrelationID: env.CorrelationID,
		raw:           msg,
	}
	logger.Ctx(ctx).Info().
		Str("routing_key", routingKey).
		Str("correlation_id", env.CorrelationID).
		Msg("Event received")

	if err := handler(ctx, d); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("routing_key", routingKey).
			Str("correlation_id", env.CorrelationID).
			Msg("Handler failed, dead-lettering")
		return c.deadLetter(ctx, msg, err)
	}
	ackedTotal.WithLabelValues(c.serviceName).Inc()
	return true
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) bool {
	if err := c.failures.DeadLetter(ctx, msg, cause); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Dead-letter write failed, message will be redelivered")
		return false
	}
	return true
}

func (c *Consumer) matches(routingKey string) bool {
	for _, p := range c.patterns {
		if MatchRoutingKey(p, routingKey) {
			return true
		}
	}
	return false
}

// ConsumerTask 把消费者和它的处理器打包成一个可托管的后台任务。
type ConsumerTask struct {
	Consumer *Consumer
	Handler  Handler
}

func (t ConsumerTask) Start(ctx context.Context) error { return t.Consumer.Start(ctx, t.Handler) }
func (t ConsumerTask) Stop(ctx context.Context)        { t.Consumer.Stop(ctx) }

// Stop 优雅地停止消费者并等待循环退出。
func (c *Consumer) Stop(ctx context.Context) {
	c.stopped = true
	if c.reader != nil {
		c.reader.Close()
	}
	c.wg.Wait()
	logger.Ctx(ctx).Info().Msgf("✅ Consumer stopped for service '%s'.", c.serviceName)
}
