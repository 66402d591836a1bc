// internal/service/notification/domain/channel.go
package domain

import "context"

// Notification 是一条翻译好的、面向用户的通知。
type Notification struct {
	EventType     string
	OrderID       string
	Message       string
	CorrelationID string
	// Data 保留原始事件载荷，渠道过滤器在其上求值
	Data map[string]any
}

// Channel 是通知渠道的出站端口（Slack、邮件、WebSocket 推送）。
// Send 失败只影响该渠道，不影响其他渠道和消息 ack。
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Filter 决定某个渠道是否接收一条通知。
type Filter interface {
	Match(n Notification) (bool, error)
}
