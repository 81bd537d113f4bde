package repository

import (
	"context"

	"gorm.io/gorm"

	"hostcal/internal/model"
)

// PropertyRepository 房源只读访问接口
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*model.Property, error)
	// ListSyncable 列出至少配置了一个订阅地址的房源
	ListSyncable(ctx context.Context) ([]model.Property, error)
}

type propertyRepo struct {
	db *gorm.DB
}

// NewPropertyRepo 创建 PropertyRepository 实例
func NewPropertyRepo(db *gorm.DB) PropertyRepository {
	return &propertyRepo{db: db}
}

func (r *propertyRepo) GetByID(ctx context.Context, id string) (*model.Property, error) {
	var p model.Property
	err := r.db.WithContext(ctx).
		Where("property_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepo) ListSyncable(ctx context.Context) ([]model.Property, error) {
	var props []model.Property
	err := r.db.WithContext(ctx).
		Where(`EXISTS (
			SELECT 1 FROM external_feed_links l
			WHERE l.property_id = properties.property_id
			  AND l.feed_url IS NOT NULL AND l.feed_url <> ''
		)`).
		Order("property_id ASC").
		Find(&props).Error
	return props, err
}
