package model

// ExternalFeedLink 外部渠道日历订阅，对应 external_feed_links
// FeedURL 为空表示该渠道不同步
type ExternalFeedLink struct {
	FeedLinkID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"feed_link_id"`
	PropertyID  string  `gorm:"type:uuid;not null"                             json:"property_id"`
	ChannelName string  `gorm:"type:varchar(64);not null"                      json:"channel_name"`
	FeedURL     *string `gorm:"type:varchar(2048)"                             json:"-"`
	BaseModel
}

// TableName 指定表名
func (ExternalFeedLink) TableName() string { return "external_feed_links" }

// Syncable 是否配置了订阅地址
func (l *ExternalFeedLink) Syncable() bool {
	return l.FeedURL != nil && *l.FeedURL != ""
}
