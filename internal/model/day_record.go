package model

import "time"

// DayStatus 房东可设置的日状态
type DayStatus string

const (
	DayAvailable  DayStatus = "available"
	DayClosed     DayStatus = "closed"
	DayPromotable DayStatus = "promotable"
)

// Valid 判断是否为合法日状态
func (s DayStatus) Valid() bool {
	switch s {
	case DayAvailable, DayClosed, DayPromotable:
		return true
	}
	return false
}

// EffectiveStatus 对账后的有效状态，只派生不落库
type EffectiveStatus string

const (
	EffectiveAvailable  EffectiveStatus = "available"
	EffectiveClosed     EffectiveStatus = "closed"
	EffectivePromotable EffectiveStatus = "promotable"
	EffectiveBooked     EffectiveStatus = "booked"
)

// Busy 是否对外发布为占用
func (s EffectiveStatus) Busy() bool {
	return s == EffectiveBooked || s == EffectiveClosed
}

// 写入来源
const (
	SourceOwner = "owner"
	SourceSync  = "sync"
)

// DayRecord 日状态，对应 day_records，(property_id, date) 唯一
type DayRecord struct {
	PropertyID    string    `gorm:"type:uuid;primaryKey"                        json:"property_id"`
	Date          time.Time `gorm:"type:date;primaryKey"                        json:"-"`
	Status        DayStatus `gorm:"type:varchar(20);not null"                   json:"status"`
	Source        string    `gorm:"type:varchar(10);not null;default:'owner'"   json:"source"`        // owner | sync
	SourceChannel string    `gorm:"type:varchar(64);not null;default:''"        json:"source_channel"` // sync 写入时为渠道名
	BaseModel
}

// TableName 指定表名
func (DayRecord) TableName() string { return "day_records" }

// SyncBlockedBy 是否为指定渠道同步写入的关闭
func (d *DayRecord) SyncBlockedBy(channel string) bool {
	return d.Status == DayClosed && d.Source == SourceSync && d.SourceChannel == channel
}
