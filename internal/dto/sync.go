package dto

// ── 同步 DTO ──

// ChannelSyncResult 单个渠道的同步结果
type ChannelSyncResult struct {
	Channel           string `json:"channel"`
	NewlyBlockedCount int    `json:"newly_blocked_count"`
	ReleasedCount     int    `json:"released_count"`
	Error             string `json:"error,omitempty"`
}

// SyncResponse 手动同步响应
type SyncResponse struct {
	PropertyID string              `json:"property_id"`
	Channels   []ChannelSyncResult `json:"channels"`
	FinishedAt string              `json:"finished_at"`
}

// SyncRunListQuery 同步历史查询参数
type SyncRunListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// SyncRunResponse 同步历史记录
type SyncRunResponse struct {
	ID            string  `json:"id"`
	Channel       string  `json:"channel"`
	Trigger       string  `json:"trigger"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    *string `json:"finished_at,omitempty"`
	BlockedCount  int     `json:"blocked_count"`
	ReleasedCount int     `json:"released_count"`
	Status        string  `json:"status"`
	Error         *string `json:"error,omitempty"`
}
