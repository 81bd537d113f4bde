package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostcal/internal/model"
)

// DayRecordRepository 日状态存储
type DayRecordRepository interface {
	// ListRange 按日期升序返回区间内已存在的记录
	ListRange(ctx context.Context, propertyID string, r model.DateRange) ([]model.DayRecord, error)
	// Upsert 按 (property_id, date) 原子写入，返回写入后的记录
	Upsert(ctx context.Context, rec *model.DayRecord) error
	// ListSyncBlocked 列出 from 之后由指定渠道同步关闭的记录
	ListSyncBlocked(ctx context.Context, propertyID, channel string, from time.Time) ([]model.DayRecord, error)
}

type dayRecordRepo struct {
	db *gorm.DB
}

// NewDayRecordRepo 创建 DayRecordRepository 实例
func NewDayRecordRepo(db *gorm.DB) DayRecordRepository {
	return &dayRecordRepo{db: db}
}

func (r *dayRecordRepo) ListRange(ctx context.Context, propertyID string, rng model.DateRange) ([]model.DayRecord, error) {
	var list []model.DayRecord
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND date >= ? AND date < ?",
			propertyID, model.FormatDate(rng.Start), model.FormatDate(rng.End)).
		Order("date ASC").
		Find(&list).Error
	return list, err
}

func (r *dayRecordRepo) Upsert(ctx context.Context, rec *model.DayRecord) error {
	// created_at 保留首次写入时间
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "property_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "source", "source_channel", "updated_at"}),
			},
			clause.Returning{},
		).
		Create(rec).Error
}

func (r *dayRecordRepo) ListSyncBlocked(ctx context.Context, propertyID, channel string, from time.Time) ([]model.DayRecord, error) {
	var list []model.DayRecord
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND date >= ?", propertyID, model.FormatDate(from)).
		Where("status = ? AND source = ? AND source_channel = ?", model.DayClosed, model.SourceSync, channel).
		Order("date ASC").
		Find(&list).Error
	return list, err
}
