// cmd/inventory-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/eventbus"
	"orderflow/internal/pkg/idempotency"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/zklock"
	"orderflow/internal/service/inventory/application"
	"orderflow/internal/service/inventory/infrastructure"
	"orderflow/internal/service/inventory/interfaces"
)

const serviceName = "inventory-service"

// busName 是该服务在 broker 侧的统一标识：
// 消费组 "{busName}_queue" 与死信主题 "{busName}_dlq" 都由它派生。
const busName = "inventory_service"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8082,
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
			repo, err := infrastructure.NewGormProductRepository(db)
			if err != nil {
				return nil, err
			}
			store, err := idempotency.NewGormStore(db, "inventory_processed_keys")
			if err != nil {
				return nil, err
			}

			// 分布式锁可选：没有 ZooKeeper 时退化为进程内直通
			var locker application.KeyLocker
			if cfg.Zk.Enabled {
				zkClient, err := zklock.Connect(cfg.Zk.Servers)
				if err != nil {
					return nil, err
				}
				locker = infrastructure.NewZkKeyLocker(zkClient)
				logger.Ctx(context.Background()).Info().Msg("✅ ZooKeeper key locking enabled")
			}

			publisher := eventbus.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
			step := application.NewReserveInventoryStep(repo, store, publisher, locker, tracer)

			consumer := eventbus.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, busName,
				eventbus.NewFailureHandler(cfg.Kafka.Brokers, busName))
			consumer.BindRoute(interfaces.RouteOrderCreated)

			return []bootstrap.Task{
				eventbus.ConsumerTask{Consumer: consumer, Handler: interfaces.NewEventHandler(step).Handle},
				eventbus.NewDLQMonitor(cfg.Kafka.Brokers, busName),
			}, nil
		},
	})
}
