// internal/pkg/eventbus/connection.go
package eventbus

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
)

const (
	connectMaxAttempts = 5
	connectBackoffMin  = 2 * time.Second
	connectBackoffMax  = 10 * time.Second
)

// ErrBrokerUnavailable 表示在用尽重试预算后仍然连不上 broker。
var ErrBrokerUnavailable = errors.New("eventbus: broker unavailable")

// Connection 封装到 Kafka 集群 controller 的连接生命周期。
// 连接是惰性建立的：容器环境下 broker 可能比服务晚就绪，
// 第一次真正用到连接时才去拨号，关闭后下次使用会重连。
type Connection struct {
	brokers []string

	mu   sync.Mutex
	conn *kafka.Conn
}

func NewConnection(brokers []string) *Connection {
	return &Connection{brokers: brokers}
}

// controller 返回一条到集群 controller 的连接，必要时建立它。
// 重试使用有界指数退避，超出预算后返回 ErrBrokerUnavailable。
func (c *Connection) controller(ctx context.Context) (*kafka.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	var lastErr error
	backoff := connectBackoffMin
	for attempt := 1; attempt <= connectMaxAttempts; attempt++ {
		conn, err := c.dialController(ctx)
		if err == nil {
			c.conn = conn
			return conn, nil
		}
		lastErr = err
		logger.Ctx(ctx).Warn().Err(err).
			Int("attempt", attempt).
			Msg("Broker connection failed, retrying")

		if attempt == connectMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > connectBackoffMax {
			backoff = connectBackoffMax
		}
	}
	return nil, errors.Wrapf(ErrBrokerUnavailable, "after %d attempts: %v", connectMaxAttempts, lastErr)
}

func (c *Connection) dialController(ctx context.Context) (*kafka.Conn, error) {
	seed, err := kafka.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return nil, err
	}
	controller, err := seed.Controller()
	if err != nil {
		seed.Close()
		return nil, err
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	if addr == c.brokers[0] {
		return seed, nil
	}
	seed.Close()
	return kafka.DialContext(ctx, "tcp", addr)
}

// Close 关闭当前连接；之后的使用会触发重连。
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// DeclareTopology 幂等地声明一个服务所需的拓扑：
// 共享事件主题和该服务专属的死信主题 "{service}_dlq"。
// 重复声明已存在的主题不是错误。
func (c *Connection) DeclareTopology(ctx context.Context, eventsTopic, serviceName string) error {
	conn, err := c.controller(ctx)
	if err != nil {
		return err
	}

	topics := []kafka.TopicConfig{
		{Topic: eventsTopic, NumPartitions: 1, ReplicationFactor: 1},
		{Topic: DeadLetterTopic(serviceName), NumPartitions: 1, ReplicationFactor: 1},
	}
	if err := conn.CreateTopics(topics...); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		// 连接在两次使用之间可能被 broker 掐断，重置并让下次使用重连
		c.Close()
		return errors.Wrap(err, "declare topology")
	}

	logger.Ctx(ctx).Info().
		Str("events_topic", eventsTopic).
		Str("dlq_topic", DeadLetterTopic(serviceName)).
		Msg("✅ Topology declared")
	return nil
}

// DeadLetterTopic 返回服务的死信主题名。
func DeadLetterTopic(serviceName string) string {
	return fmt.Sprintf("%s_dlq", serviceName)
}

// DeadLetterKey 是死信消息的固定路由键。
func DeadLetterKey(serviceName string) string {
	return fmt.Sprintf("%s_dlq_key", serviceName)
}
