// internal/pkg/eventbus/envelope.go
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope 是所有业务事件的统一线格式。
// correlation_id 在一条 Saga 链路内保持不变，由第一次发布时生成，
// 之后的每个因果派生事件都原样携带。
type Envelope struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	Timestamp     string         `json:"timestamp"`
	Data          map[string]any `json:"data"`
	CorrelationID string         `json:"correlation_id"`
}

// NewEnvelope 构建一个新的事件信封。correlationID 为空时生成新的。
func NewEnvelope(eventType string, data map[string]any, correlationID string) Envelope {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Data:          data,
		CorrelationID: correlationID,
	}
}

// RoutingKey 路由键约定: "{topic}.{event_type}"，例如 "orders.OrderCreated"。
func RoutingKey(topic, eventType string) string {
	return fmt.Sprintf("%s.%s", topic, eventType)
}

// DecodeData 把信封里的 data 解码到一个具体的事件载荷结构体上。
func (e Envelope) DecodeData(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
