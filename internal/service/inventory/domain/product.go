// internal/service/inventory/domain/product.go
package domain

import "github.com/pkg/errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product 是库存聚合的根实体。
type Product struct {
	ProductID string
	Name      string
	Stock     int
}

// HasSufficientStock 判断当前库存是否满足请求数量。
func (p *Product) HasSufficientStock(quantity int) bool {
	return p.Stock >= quantity
}

// ReservationItem 是一次预占请求里的一个条目。
type ReservationItem struct {
	ProductID string
	Quantity  int
}
