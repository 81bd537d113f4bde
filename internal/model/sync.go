package model

import "time"

// SyncLease 房源级同步租约，对应 sync_leases
type SyncLease struct {
	PropertyID string    `gorm:"type:uuid;primaryKey"          json:"property_id"`
	Holder     string    `gorm:"type:varchar(64);not null"     json:"holder"`
	AcquiredAt time.Time `gorm:"not null"                      json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"not null"                      json:"expires_at"`
}

// TableName 指定表名
func (SyncLease) TableName() string { return "sync_leases" }

// 同步触发方式
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// 同步运行状态
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncFailure = "failure"
)

// SyncRun 单个渠道的一次同步记录，对应 sync_runs
type SyncRun struct {
	SyncRunID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"sync_run_id"`
	PropertyID    string     `gorm:"type:uuid;not null"                             json:"property_id"`
	ChannelName   string     `gorm:"type:varchar(64);not null"                      json:"channel_name"`
	Trigger       string     `gorm:"type:varchar(20);not null"                      json:"trigger"`
	StartedAt     time.Time  `gorm:"not null"                                       json:"started_at"`
	FinishedAt    *time.Time `                                                      json:"finished_at,omitempty"`
	BlockedCount  int        `gorm:"not null;default:0"                             json:"blocked_count"`
	ReleasedCount int        `gorm:"not null;default:0"                             json:"released_count"`
	Status        string     `gorm:"type:varchar(20);not null;default:'running'"    json:"status"`
	Error         *string    `gorm:"type:varchar(1000)"                             json:"error,omitempty"`
}

// TableName 指定表名
func (SyncRun) TableName() string { return "sync_runs" }
