// internal/pkg/eventbus/membus/membus.go
package membus

import (
	"context"
	"sync"

	"orderflow/internal/pkg/eventbus"
)

// PublishedEvent 记录一次发布，供测试断言。
type PublishedEvent struct {
	Topic         string
	EventType     string
	RoutingKey    string
	CorrelationID string
	Envelope      eventbus.Envelope
}

// DeadLetter 记录一次投往某服务死信队列的失败投递。
type DeadLetter struct {
	Service  string
	Delivery eventbus.Delivery
	Cause    error
}

type subscription struct {
	service  string
	patterns []string
	handler  eventbus.Handler
}

// Bus 是事件总线的内存实现，实现 eventbus.Publisher。
// 发布时同步地把投递分发给所有匹配的订阅者，
// 处理器报错则记入该订阅者的死信列表 —— 与真实总线的
// ack / nack-to-DLQ 语义一致，但全部发生在进程内。
type Bus struct {
	mu          sync.Mutex
	published   []PublishedEvent
	deadLetters []DeadLetter
	subs        []subscription
}

func New() *Bus {
	return &Bus{}
}

// Subscribe 注册一个服务的处理器及其绑定模式。
func (b *Bus) Subscribe(service string, patterns []string, handler eventbus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{service: service, patterns: patterns, handler: handler})
}

func (b *Bus) Publish(ctx context.Context, topic, eventType string, data map[string]any, correlationID string) error {
	env := eventbus.NewEnvelope(eventType, data, correlationID)
	routingKey := eventbus.RoutingKey(topic, eventType)

	b.mu.Lock()
	b.published = append(b.published, PublishedEvent{
		Topic:         topic,
		EventType:     eventType,
		RoutingKey:    routingKey,
		CorrelationID: env.CorrelationID,
		Envelope:      env,
	})
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	// 分发在锁外进行：处理器自己可能继续发布（saga 链）
	for _, sub := range subs {
		if !matchesAny(sub.patterns, routingKey) {
			continue
		}
		d := eventbus.Delivery{
			Envelope:      env,
			RoutingKey:    routingKey,
			CorrelationID: env.CorrelationID,
		}
		if err := sub.handler(ctx, d); err != nil {
			b.mu.Lock()
			b.deadLetters = append(b.deadLetters, DeadLetter{Service: sub.service, Delivery: d, Cause: err})
			b.mu.Unlock()
		}
	}
	return nil
}

// Redeliver 把一条已发布的事件重新投给所有匹配的订阅者，
// 模拟 broker 的 at-least-once 重复投递。
func (b *Bus) Redeliver(ctx context.Context, ev PublishedEvent) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		if !matchesAny(sub.patterns, ev.RoutingKey) {
			continue
		}
		d := eventbus.Delivery{
			Envelope:      ev.Envelope,
			RoutingKey:    ev.RoutingKey,
			CorrelationID: ev.CorrelationID,
		}
		if err := sub.handler(ctx, d); err != nil {
			b.mu.Lock()
			b.deadLetters = append(b.deadLetters, DeadLetter{Service: sub.service, Delivery: d, Cause: err})
			b.mu.Unlock()
		}
	}
}

// Published 返回全部已发布事件的快照。
func (b *Bus) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PublishedEvent(nil), b.published...)
}

// ByType 返回指定事件类型的所有发布。
func (b *Bus) ByType(eventType string) []PublishedEvent {
	var out []PublishedEvent
	for _, ev := range b.Published() {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// DeadLetters 返回指定服务收到的死信。
func (b *Bus) DeadLetters(service string) []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []DeadLetter
	for _, dl := range b.deadLetters {
		if dl.Service == service {
			out = append(out, dl)
		}
	}
	return out
}

func matchesAny(patterns []string, routingKey string) bool {
	for _, p := range patterns {
		if eventbus.MatchRoutingKey(p, routingKey) {
			return true
		}
	}
	return false
}
