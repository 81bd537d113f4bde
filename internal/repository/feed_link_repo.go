package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostcal/internal/model"
)

// FeedLinkRepository 外部订阅链接数据访问接口
type FeedLinkRepository interface {
	ListByProperty(ctx context.Context, propertyID string) ([]model.ExternalFeedLink, error)
	GetByChannel(ctx context.Context, propertyID, channel string) (*model.ExternalFeedLink, error)
	// Upsert 按 (property_id, channel_name) 写入
	Upsert(ctx context.Context, link *model.ExternalFeedLink) error
	// Delete 返回是否有行被删除
	Delete(ctx context.Context, propertyID, channel string) (bool, error)
}

type feedLinkRepo struct {
	db *gorm.DB
}

// NewFeedLinkRepo 创建 FeedLinkRepository 实例
func NewFeedLinkRepo(db *gorm.DB) FeedLinkRepository {
	return &feedLinkRepo{db: db}
}

func (r *feedLinkRepo) ListByProperty(ctx context.Context, propertyID string) ([]model.ExternalFeedLink, error) {
	var links []model.ExternalFeedLink
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("channel_name ASC").
		Find(&links).Error
	return links, err
}

func (r *feedLinkRepo) GetByChannel(ctx context.Context, propertyID, channel string) (*model.ExternalFeedLink, error) {
	var link model.ExternalFeedLink
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND channel_name = ?", propertyID, channel).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *feedLinkRepo) Upsert(ctx context.Context, link *model.ExternalFeedLink) error {
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "property_id"}, {Name: "channel_name"}},
				DoUpdates: clause.AssignmentColumns([]string{"feed_url", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(link).Error
}

func (r *feedLinkRepo) Delete(ctx context.Context, propertyID, channel string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("property_id = ? AND channel_name = ?", propertyID, channel).
		Delete(&model.ExternalFeedLink{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
