package repository

import (
	"context"

	"gorm.io/gorm"

	"hostcal/internal/model"
)

// ReservationRepository 预订只读视图
type ReservationRepository interface {
	// ListActive 列出与窗口相交的 pending / confirmed 预订
	ListActive(ctx context.Context, propertyID string, window model.DateRange) ([]model.Reservation, error)
}

type reservationRepo struct {
	db *gorm.DB
}

// NewReservationRepo 创建 ReservationRepository 实例
func NewReservationRepo(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

func (r *reservationRepo) ListActive(ctx context.Context, propertyID string, window model.DateRange) ([]model.Reservation, error) {
	var list []model.Reservation
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Where("state IN ?", []string{model.ReservationPending, model.ReservationConfirmed}).
		Where("start_date < ? AND end_date > ?", model.FormatDate(window.End), model.FormatDate(window.Start)).
		Order("start_date ASC").
		Find(&list).Error
	return list, err
}
