// internal/pkg/breaker/breaker.go
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrOpen 在熔断器打开时由 Do 直接返回，不会触达被保护的依赖。
// 它是唯一允许从 saga 处理器中逃逸出去的错误类型 ——
// 消费框架据此把消息送入死信队列等待重放。
var ErrOpen = errors.New("breaker: circuit open")

// State 熔断器的三个状态。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

var stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "orderflow_breaker_state",
	Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
}, []string{"name"})

// Breaker 是一个显式的熔断器对象，自己持有状态和锁，
// 按依赖各建一个实例、按引用传给执行受保护调用的组件。
//
// 状态机: CLOSED --连续 F 次失败--> OPEN --超时 T--> HALF_OPEN
// (恰好放行一次试探调用) --成功--> CLOSED / --失败--> OPEN (超时重置)。
type Breaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time // 可注入时钟，供测试使用

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// Option 调整熔断器的行为。
type Option func(*Breaker)

// WithClock 注入自定义时钟。
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New 创建一个熔断器。failureThreshold 次连续失败后打开，
// resetTimeout 后进入半开。
func New(name string, failureThreshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	stateGauge.WithLabelValues(name).Set(float64(StateClosed))
	return b
}

// State 返回当前状态（OPEN 超时后报告为 HALF_OPEN）。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Do 在熔断器的保护下执行 fn。
// OPEN 状态下立即返回 ErrOpen，不调用 fn，保证失败依赖上的
// 延迟和负载有界。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// allow 判定本次调用是否放行，必要时完成 OPEN -> HALF_OPEN 迁移。
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		// 半开状态只放行一次试探调用
		if b.trialInFlight {
			return ErrOpen
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
		if err != nil {
			// 试探失败：回到 OPEN，超时重新计时
			b.openedAt = b.now()
			b.transition(StateOpen)
			return
		}
		b.failures = 0
		b.transition(StateClosed)
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(next State) {
	b.state = next
	stateGauge.WithLabelValues(b.name).Set(float64(next))
}
