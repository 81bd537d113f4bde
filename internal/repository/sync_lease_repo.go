package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostcal/internal/model"
)

// SyncLeaseRepository 基于数据库行的同步租约
// 条件写入：行不存在或已过期时才能占有
type SyncLeaseRepository interface {
	Acquire(ctx context.Context, propertyID, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, propertyID, holder string) error
}

type syncLeaseRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSyncLeaseRepo 创建 SyncLeaseRepository 实例
func NewSyncLeaseRepo(db *gorm.DB) SyncLeaseRepository {
	return &syncLeaseRepo{db: db, now: time.Now}
}

func (r *syncLeaseRepo) Acquire(ctx context.Context, propertyID, holder string, ttl time.Duration) (bool, error) {
	now := r.now().UTC()
	lease := model.SyncLease{
		PropertyID: propertyID,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	// INSERT ... ON CONFLICT (property_id) DO UPDATE ... WHERE sync_leases.expires_at < now
	// 租约仍有效时 UPDATE 不命中，RowsAffected 为 0
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "property_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"holder", "acquired_at", "expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "sync_leases.expires_at < ?", Vars: []interface{}{now}},
			}},
		}).
		Create(&lease)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *syncLeaseRepo) Release(ctx context.Context, propertyID, holder string) error {
	return r.db.WithContext(ctx).
		Where("property_id = ? AND holder = ?", propertyID, holder).
		Delete(&model.SyncLease{}).Error
}
