// internal/pkg/idempotency/gorm_store.go
package idempotency

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedKeyModel 是幂等记录的数据库模型。
// 主键上的唯一约束承担并发重复投递的最终仲裁。
type ProcessedKeyModel struct {
	Key       string    `gorm:"primaryKey;size:191;column:business_key"`
	Outcome   string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// GormStore 是 Store 的 GORM/MySQL 实现。
// 每个服务用自己的表，避免跨服务共享 schema。
type GormStore struct {
	db    *gorm.DB
	table string
}

func NewGormStore(db *gorm.DB, table string) (*GormStore, error) {
	if err := db.Table(table).AutoMigrate(&ProcessedKeyModel{}); err != nil {
		return nil, errors.Wrapf(err, "migrate idempotency table %s", table)
	}
	return &GormStore{db: db, table: table}, nil
}

func (s *GormStore) Seen(ctx context.Context, key string) (Record, bool, error) {
	var model ProcessedKeyModel
	err := s.db.WithContext(ctx).Table(s.table).Where("business_key = ?", key).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrap(err, "idempotency lookup")
	}
	return Record{Key: model.Key, Outcome: model.Outcome, CreatedAt: model.CreatedAt}, true, nil
}

func (s *GormStore) Record(ctx context.Context, key, outcome string) error {
	model := ProcessedKeyModel{Key: key, Outcome: outcome, CreatedAt: time.Now().UTC()}
	res := s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "idempotency record")
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateKey
	}
	return nil
}
