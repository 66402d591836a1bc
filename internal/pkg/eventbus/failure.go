// internal/pkg/eventbus/failure.go
package eventbus

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
)

// FailureHandler 把处理失败的消息转投到服务专属的死信主题。
// 原始消息体保持原样，失败元数据全部放在消息头里，
// 方便之后人工检查或重放。
type FailureHandler struct {
	serviceName string
	writer      *kafka.Writer
}

func NewFailureHandler(brokers []string, serviceName string) *FailureHandler {
	return &FailureHandler{
		serviceName: serviceName,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        DeadLetterTopic(serviceName),
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// DeadLetter 写入一条死信。返回错误时调用方不应提交原消息。
func (f *FailureHandler) DeadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderErrorMessage, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderFailedAt, Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
	)

	err := f.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(DeadLetterKey(f.serviceName)),
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return err
	}

	deadLettersTotal.WithLabelValues(f.serviceName).Inc()
	logger.Ctx(ctx).Warn().
		Str("dlq_topic", DeadLetterTopic(f.serviceName)).
		Str("error", cause.Error()).
		Msg("Message dead-lettered")
	return nil
}

func (f *FailureHandler) Close() error {
	return f.writer.Close()
}
