package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"orderflow/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	OrderID      string `gorm:"primaryKey;size:64;column:order_id"`
	CustomerID   string `gorm:"size:64;index"`
	Status       string `gorm:"size:16"`
	TotalAmount  float64
	RejectReason string `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Items        []OrderItemModel `gorm:"foreignKey:OrderID;references:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID        uint   `gorm:"primaryKey"`
	OrderID   string `gorm:"size:64;index"`
	ProductID string `gorm:"size:64"`
	Quantity  int
	Price     float64
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) (*GormOrderRepository, error) {
	if err := db.AutoMigrate(&OrderModel{}, &OrderItemModel{}); err != nil {
		return nil, err
	}
	return &GormOrderRepository{db: db}, nil
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toModel(order)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where("order_id = ?", orderID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomain(&model), nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.Status, reason string) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":        string(status),
			"reject_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func toModel(order *domain.Order) OrderModel {
	items := make([]OrderItemModel, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemModel{
			OrderID:   order.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return OrderModel{
		OrderID:      order.OrderID,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		TotalAmount:  order.TotalAmount,
		RejectReason: order.RejectReason,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
		Items:        items,
	}
}

func toDomain(model *OrderModel) *domain.Order {
	items := make([]domain.OrderItem, 0, len(model.Items))
	for _, item := range model.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return &domain.Order{
		OrderID:      model.OrderID,
		CustomerID:   model.CustomerID,
		Status:       domain.Status(model.Status),
		Items:        items,
		TotalAmount:  model.TotalAmount,
		RejectReason: model.RejectReason,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
