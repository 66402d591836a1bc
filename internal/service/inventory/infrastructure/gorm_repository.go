package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/service/inventory/domain"
)

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ProductID string `gorm:"primaryKey;size:64;column:product_id"`
	Name      string `gorm:"size:255"`
	Stock     int
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) (*GormProductRepository, error) {
	if err := db.AutoMigrate(&ProductModel{}); err != nil {
		return nil, err
	}
	return &GormProductRepository{db: db}, nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &domain.Product{ProductID: model.ProductID, Name: model.Name, Stock: model.Stock}, nil
}

// ReserveItems 在一个事务里扣减所有条目的库存。
// 每条 UPDATE 带 stock >= ? 守卫：数据库层面保证不会扣成负数，
// 也保证并发扣减时只有一个请求成功。任何条目失败即整体回滚。
func (r *GormProductRepository) ReserveItems(ctx context.Context, items []domain.ReservationItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			result := tx.Model(&ProductModel{}).
				Where("product_id = ? AND stock >= ?", item.ProductID, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				// 行不存在或库存不足，区分一下给上层更准的原因
				var count int64
				if err := tx.Model(&ProductModel{}).Where("product_id = ?", item.ProductID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return domain.ErrProductNotFound
				}
				return domain.ErrInsufficientStock
			}
		}
		return nil
	})
}

func (r *GormProductRepository) Upsert(ctx context.Context, product *domain.Product) error {
	model := ProductModel{ProductID: product.ProductID, Name: product.Name, Stock: product.Stock}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "stock"}),
	}).Create(&model).Error
}
