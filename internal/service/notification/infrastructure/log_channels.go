package infrastructure

import (
	"context"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/notification/domain"
)

// LogChannel 把通知写到结构化日志，开发环境的默认渠道。
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(ctx context.Context, n domain.Notification) error {
	logger.Ctx(ctx).Info().
		Str("channel", "log").
		Str("order_id", n.OrderID).
		Str("correlation_id", n.CorrelationID).
		Msg(n.Message)
	return nil
}

// EmailChannel 模拟 SMTP 投递。
type EmailChannel struct {
	Recipient string
}

func (EmailChannel) Name() string { return "email" }

func (c EmailChannel) Send(ctx context.Context, n domain.Notification) error {
	recipient := c.Recipient
	if recipient == "" {
		recipient = "customer@example.com"
	}
	logger.Ctx(ctx).Info().
		Str("channel", "email").
		Str("recipient", recipient).
		Str("subject", "Order Update").
		Msgf("📧 %s", n.Message)
	return nil
}
