package model

import "time"

// 预订状态
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCompleted = "completed"
	ReservationCancelled = "cancelled"
)

// Reservation 预订子系统的只读投影，对应 reservations
type Reservation struct {
	ReservationID string    `gorm:"type:uuid;primaryKey"         json:"reservation_id"`
	PropertyID    string    `gorm:"type:uuid;not null"           json:"property_id"`
	StartDate     time.Time `gorm:"type:date;not null"           json:"start_date"` // 含
	EndDate       time.Time `gorm:"type:date;not null"           json:"end_date"`   // 不含
	State         string    `gorm:"type:varchar(20);not null"    json:"state"`
}

// TableName 指定表名
func (Reservation) TableName() string { return "reservations" }

// Active 只有 pending / confirmed 参与对账
func (r *Reservation) Active() bool {
	return r.State == ReservationPending || r.State == ReservationConfirmed
}

// Range 预订占用的日期区间
func (r *Reservation) Range() DateRange {
	return NewDateRange(r.StartDate, r.EndDate)
}
