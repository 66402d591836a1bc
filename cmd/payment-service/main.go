// cmd/payment-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/breaker"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/service/payment/application"
	"orderflow/internal/service/payment/infrastructure"
	"orderflow/internal/service/payment/interfaces"
)

const serviceName = "payment-service"

// busName 是该服务在 broker 侧的统一标识：
// 消费组 "{busName}_queue" 与死信主题 "{busName}_dlq" 都由它派生。
const busName = "payment_service"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8083,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) ([]bootstrap.Task, error) {
			cfg := appCtx.Config
			tracer := otel.Tracer(serviceName)

			conn := eventbus.NewConnection(cfg.Kafka.Brokers)
			if err := conn.DeclareTopology(context.Background(), cfg.Kafka.EventsTopic, busName); err != nil {
				return nil, err
			}

			db, err := database.Open(cfg.MySQL.DSN)
			if err != nil {
				return nil, err
			}
			store, err := idempotency.NewGormStore(db, "payment_processed_keys")
			if err != nil {
				return nil, err
			}

			gateway := infrastructure.NewHTTPPaymentGateway(httpclient.NewClient(tracer), cfg.Gateway.ChargeURL)
			brk := breaker.New("payment-gateway", cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeout)

			publisher := eventbus.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
			step := application.NewProcessPaymentStep(gateway, store, publisher, brk, tracer)

			consumer := eventbus.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, busName,
				eventbus.NewFailureHandler(cfg.Kafka.Brokers, busName))
			consumer.BindRoute(interfaces.RouteInventoryReserved)

			return []bootstrap.Task{
				eventbus.ConsumerTask{Consumer: consumer, Handler: interfaces.NewEventHandler(step).Handle},
				eventbus.NewDLQMonitor(cfg.Kafka.Brokers, busName),
			}, nil
		},
	})
}
