// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyOrder    = errors.New("order must contain at least one item")
)

// OrderItem 是订单里的一个条目（值对象）。
type OrderItem struct {
	ProductID string
	Quantity  int
	Price     float64
}

func (i OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Order 是订单聚合的根实体。TotalAmount 由条目算出，创建后不变。
type Order struct {
	OrderID      string
	CustomerID   string
	Status       Status
	Items        []OrderItem
	TotalAmount  float64
	RejectReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 工厂函数: NewOrder 创建一个 PENDING 状态的新订单
func NewOrder(customerID string, items []OrderItem) (*Order, error) {
	if customerID == "" {
		return nil, errors.New("cannot create order with empty customer id")
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	total := 0.0
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.Price < 0 {
			return nil, errors.Errorf("invalid order item %q", item.ProductID)
		}
		total += item.Subtotal()
	}

	now := time.Now().UTC()
	return &Order{
		OrderID:     uuid.NewString(),
		CustomerID:  customerID,
		Status:      StatusPending,
		Items:       items,
		TotalAmount: total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
