// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 保存一个订单聚合（用于创建）。
	Save(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找一个订单聚合。
	FindByID(ctx context.Context, orderID string) (*Order, error)

	// UpdateStatus 只更新状态和拒绝原因，投影消费者使用。
	// 订单不存在时返回 ErrOrderNotFound。
	UpdateStatus(ctx context.Context, orderID string, status Status, reason string) error
}
