// cmd/notification-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/notification/application"
	"orderflow/internal/service/notification/infrastructure"
	"orderflow/internal/service/notification/interfaces"
)

const serviceName = "notification-service"

// busName 是该服务在 broker 侧的统一标识：
// 消费组 "{busName}_queue" 与死信主题 "{busName}_dlq" 都由它派生。
const busName = "notification_service"

// hubTask 把 WebSocket Hub 的事件循环托管为后台任务。
type hubTask struct {
	hub    *infrastructure.Hub
	cancel context.CancelFunc
}

func (t *hubTask) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.hub.Run(runCtx)
	return nil
}

func (t *hubTask) Stop(context.Context) {
	if t.cancel != nil {
		t.cancel()
	}
}

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8084,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) ([]bootstrap.Task, error) {
			cfg := appCtx.Config
			tracer := otel.Tracer(serviceName)

			conn := eventbus.NewConnection(cfg.Kafka.Brokers)
			if err := conn.DeclareTopology(context.Background(), cfg.Kafka.EventsTopic, busName); err != nil {
				return nil, err
			}

			hub := infrastructure.NewHub()
			appCtx.Mux.HandleFunc("/ws", hub.ServeWS)

			bindings := []application.ChannelBinding{
				{Channel: infrastructure.LogChannel{}},
				{Channel: infrastructure.EmailChannel{}},
				{Channel: infrastructure.NewPushChannel(hub)},
			}

			// Slack 只接失败单，用 CEL 表达式过滤
			if cfg.Slack.WebhookURL != "" {
				filter, err := infrastructure.NewCELFilter(cfg.Slack.Filter)
				if err != nil {
					return nil, err
				}
				bindings = append(bindings, application.ChannelBinding{
					Channel: infrastructure.NewSlackChannel(httpclient.NewClient(tracer), cfg.Slack.WebhookURL, cfg.Slack.Channel),
					Filter:  filter,
				})
				logger.Ctx(context.Background()).Info().Str("filter", cfg.Slack.Filter).Msg("✅ Slack channel enabled")
			}

			service := application.NewNotifyService(bindings, tracer)

			consumer := eventbus.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, busName,
				eventbus.NewFailureHandler(cfg.Kafka.Brokers, busName))
			for _, route := range interfaces.Routes {
				consumer.BindRoute(route)
			}

			return []bootstrap.Task{
				&hubTask{hub: hub},
				eventbus.ConsumerTask{Consumer: consumer, Handler: interfaces.NewEventHandler(service).Handle},
				eventbus.NewDLQMonitor(cfg.Kafka.Brokers, busName),
			}, nil
		},
	})
}
