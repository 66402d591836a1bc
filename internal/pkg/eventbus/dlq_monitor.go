// internal/pkg/eventbus/dlq_monitor.go
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
)

// DLQMonitor 监听服务的死信主题并记录结构化日志。
// 死信消息总是直接提交 —— 记录日志就是对它的"处理"，
// 重放由运维人员按需进行。
type DLQMonitor struct {
	reader  *kafka.Reader
	wg      sync.WaitGroup
	stopped bool
}

func NewDLQMonitor(brokers []string, serviceName string) *DLQMonitor {
	return &DLQMonitor{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: fmt.Sprintf("%s_dlq_monitor", serviceName),
			Topic:   DeadLetterTopic(serviceName),
		}),
	}
}

func (m *DLQMonitor) Start(ctx context.Context) error {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", m.reader.Config().Topic).Msg("✅ DLQ monitor started.")
		for {
			if m.stopped {
				return
			}
			msg, err := m.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("🛑 DLQ monitor shutting down.")
					return
				}
				// 连接中断：reader 内部会重连，这里只避免快速失败循环
				logger.Ctx(ctx).Warn().Err(err).Msg("DLQ read failed, retrying")
				time.Sleep(1 * time.Second)
				continue
			}
			logDeadLetter(ctx, msg)
		}
	}()
	return nil
}

func (m *DLQMonitor) Stop(ctx context.Context) {
	m.stopped = true
	m.reader.Close()
	m.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", m.reader.Config().Topic).Msg("✅ DLQ monitor stopped.")
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headerValue(msg, HeaderOriginalTopic)).
		Str("original_partition", headerValue(msg, HeaderOriginalPartition)).
		Str("original_offset", headerValue(msg, HeaderOriginalOffset)).
		Str("error_message", headerValue(msg, HeaderErrorMessage)).
		Str("failed_at", headerValue(msg, HeaderFailedAt)).
		Str("routing_key", headerValue(msg, HeaderRoutingKey)).
		Str("correlation_id", headerValue(msg, HeaderCorrelationID)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
