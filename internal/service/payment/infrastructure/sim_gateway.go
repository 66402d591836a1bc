package infrastructure

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"orderflow/internal/service/payment/domain"
)

// declineThreshold 之上的金额一律拒绝，模拟余额不足。
const declineThreshold = 5000.0

// SimulatedGateway 是本地模拟网关，开发环境和演示链路使用。
// FaultRate 控制随机瞬态故障的概率，用来触发熔断器。
type SimulatedGateway struct {
	mu        sync.Mutex
	rng       *rand.Rand
	faultRate float64
	counter   int64
}

func NewSimulatedGateway(faultRate float64, seed int64) *SimulatedGateway {
	return &SimulatedGateway{rng: rand.New(rand.NewSource(seed)), faultRate: faultRate}
}

func (g *SimulatedGateway) Charge(_ context.Context, orderID string, amount float64) (string, error) {
	if amount > declineThreshold {
		return "", &domain.DeclinedError{Reason: "insufficient funds"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rng.Float64() < g.faultRate {
		return "", errors.New("payment gateway connection timeout")
	}
	g.counter++
	return fmt.Sprintf("trans_%s_%05d", orderID, g.counter), nil
}
