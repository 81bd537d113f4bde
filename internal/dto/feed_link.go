package dto

// ── 外部订阅链接 DTO ──

// FeedLinkURI 渠道路径参数
type FeedLinkURI struct {
	PropertyID string `uri:"id"      binding:"required,uuid"`
	Channel    string `uri:"channel" binding:"required,min=1,max=64"`
}

// PutFeedLinkRequest 设置渠道订阅地址，feed_url 为空表示停止同步该渠道
type PutFeedLinkRequest struct {
	FeedURL *string `json:"feed_url" binding:"omitempty,max=2048"`
}

// FeedLinkResponse 订阅链接
type FeedLinkResponse struct {
	ID          string  `json:"id"`
	ChannelName string  `json:"channel_name"`
	FeedURL     *string `json:"feed_url"`
	UpdatedAt   string  `json:"updated_at"`
}
