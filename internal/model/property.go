package model

import "time"

// Property 房源注册中心的只读投影，本服务从不创建或删除
type Property struct {
	PropertyID string `gorm:"type:uuid;primaryKey"                      json:"property_id"`
	OwnerID    string `gorm:"type:uuid;not null"                        json:"owner_id"`
	Timezone   string `gorm:"type:varchar(64);not null;default:'UTC'"   json:"timezone"`
}

// TableName 指定表名
func (Property) TableName() string { return "properties" }

// Location 房源参考时区，无法识别时回退 UTC
func (p *Property) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
