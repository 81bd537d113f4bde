package model

import "time"

// BaseModel 审计时间字段
// 上游投影表（properties / reservations）不嵌入，由各自服务维护
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
