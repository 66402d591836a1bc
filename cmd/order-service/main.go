// cmd/order-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/interfaces"
)

const serviceName = "order-service"

// busName 是该服务在 broker 侧的统一标识：
// 消费组 "{busName}_queue" 与死信主题 "{busName}_dlq" 都由它派生。
const busName = "order_service"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8080,
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
			repo, err := infrastructure.NewGormOrderRepository(db)
			if err != nil {
				return nil, err
			}
			store, err := idempotency.NewGormStore(db, "order_processed_keys")
			if err != nil {
				return nil, err
			}
			cache := infrastructure.NewRedisStatusCache(infrastructure.RedisConfig{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				TTL:      cfg.Redis.TTL,
			})

			publisher := eventbus.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)

			// 命令侧 + 读侧 HTTP 接口
			creator := application.NewCreateOrderService(repo, store, publisher, tracer)
			query := application.NewOrderQuery(repo, cache)
			interfaces.NewOrderHandler(creator, query).RegisterRoutes(appCtx.Mux)

			// 投影消费者
			projection := application.NewStatusProjection(repo, cache, tracer)
			consumer := eventbus.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, busName,
				eventbus.NewFailureHandler(cfg.Kafka.Brokers, busName))
			for _, route := range interfaces.Routes {
				consumer.BindRoute(route)
			}

			logger.Ctx(context.Background()).Info().Msg("Order service assembled")
			return []bootstrap.Task{
				eventbus.ConsumerTask{Consumer: consumer, Handler: interfaces.NewEventHandler(projection).Handle},
				eventbus.NewDLQMonitor(cfg.Kafka.Brokers, busName),
			}, nil
		},
	})
}
