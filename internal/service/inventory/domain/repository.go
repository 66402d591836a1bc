// internal/service/inventory/domain/repository.go
package domain

import "context"

// ProductRepository 定义了库存持久化的出站端口。
// 它位于领域层，由基础设施层实现。
type ProductRepository interface {
	// FindByID 根据商品 ID 查找商品。
	FindByID(ctx context.Context, productID string) (*Product, error)

	// ReserveItems 原子地扣减所有条目的库存。
	// 任何一个条目失败时整体回滚，不留下部分预占。
	ReserveItems(ctx context.Context, items []ReservationItem) error

	// Upsert 写入或更新一个商品（seeder 和测试使用）。
	Upsert(ctx context.Context, product *Product) error
}
