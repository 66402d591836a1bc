package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 死信主题的三个使用方必须从同一个服务标识派生出同一个主题名：
// DeclareTopology 声明的、FailureHandler 写入的、DLQMonitor 消费的。
// 名字不一致时死信会写进一个从未声明过的主题，
// 在禁用 auto-create 的集群上写入失败，消息陷入无限重投。
func TestDeadLetterTopicNamesAgree(t *testing.T) {
	brokers := []string{"localhost:9092"}

	for _, service := range []string{"order_service", "inventory_service", "payment_service", "notification_service"} {
		t.Run(service, func(t *testing.T) {
			declared := DeadLetterTopic(service)
			require.Equal(t, service+"_dlq", declared)

			fh := NewFailureHandler(brokers, service)
			defer fh.Close()
			assert.Equal(t, declared, fh.writer.Topic, "failure handler must write the declared DLQ topic")

			mon := NewDLQMonitor(brokers, service)
			defer mon.reader.Close()
			assert.Equal(t, declared, mon.reader.Config().Topic, "monitor must consume the declared DLQ topic")
		})
	}
}
