package repository

import (
	"context"

	"gorm.io/gorm"

	"hostcal/internal/model"
)

// SyncRunRepository 同步运行记录
type SyncRunRepository interface {
	Create(ctx context.Context, run *model.SyncRun) error
	// Finish 回写结束时间、计数与结果
	Finish(ctx context.Context, run *model.SyncRun) error
	ListByProperty(ctx context.Context, propertyID string, limit int) ([]model.SyncRun, error)
}

type syncRunRepo struct {
	db *gorm.DB
}

// NewSyncRunRepo 创建 SyncRunRepository 实例
func NewSyncRunRepo(db *gorm.DB) SyncRunRepository {
	return &syncRunRepo{db: db}
}

func (r *syncRunRepo) Create(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *syncRunRepo) Finish(ctx context.Context, run *model.SyncRun) error {
	return r.db.WithContext(ctx).
		Model(&model.SyncRun{}).
		Where("sync_run_id = ?", run.SyncRunID).
		Updates(map[string]interface{}{
			"finished_at":    run.FinishedAt,
			"blocked_count":  run.BlockedCount,
			"released_count": run.ReleasedCount,
			"status":         run.Status,
			"error":          run.Error,
		}).Error
}

func (r *syncRunRepo) ListByProperty(ctx context.Context, propertyID string, limit int) ([]model.SyncRun, error) {
	var runs []model.SyncRun
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
