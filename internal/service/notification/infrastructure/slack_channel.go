package infrastructure

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/notification/domain"
)

// SlackChannel 通过 Incoming Webhook 把通知发到一个 Slack 频道。
type SlackChannel struct {
	client     *httpclient.Client
	webhookURL string
	channel    string
}

func NewSlackChannel(client *httpclient.Client, webhookURL, channel string) *SlackChannel {
	if channel == "" {
		channel = "#ops-alerts"
	}
	return &SlackChannel{client: client, webhookURL: webhookURL, channel: channel}
}

func (s *SlackChannel) Name() string { return "slack" }

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (s *SlackChannel) Send(ctx context.Context, n domain.Notification) error {
	payload := slackPayload{Channel: s.channel, Text: "📢 " + n.Message}
	if err := s.client.PostJSON(ctx, s.webhookURL, payload, nil); err != nil {
		return errors.Wrap(err, "slack webhook")
	}
	return nil
}
