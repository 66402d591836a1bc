package infrastructure

import (
	"context"
	"sync"

	"orderflow/internal/service/inventory/domain"
)

// MemoryProductRepository 是 ProductRepository 的内存实现，测试用。
// 语义与 GORM 实现一致：ReserveItems 全部成功或全部不变。
type MemoryProductRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: make(map[string]*domain.Product)}
}

func (r *MemoryProductRepository) FindByID(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProductRepository) ReserveItems(_ context.Context, items []domain.ReservationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 先整体校验，再统一扣减
	for _, item := range items {
		p, ok := r.products[item.ProductID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if p.Stock < item.Quantity {
			return domain.ErrInsufficientStock
		}
	}
	for _, item := range items {
		r.products[item.ProductID].Stock -= item.Quantity
	}
	return nil
}

func (r *MemoryProductRepository) Upsert(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *product
	r.products[product.ProductID] = &cp
	return nil
}
