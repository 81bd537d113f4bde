package dto

// ── 日历与状态变更 DTO ──

// PropertyURI 房源路径参数
type PropertyURI struct {
	PropertyID string `uri:"id" binding:"required,uuid"`
}

// PublicFeedURI 对外订阅路径参数
type PublicFeedURI struct {
	PropertyID string `uri:"property_id" binding:"required,uuid"`
}

// CalendarQuery 有效日历查询参数，缺省为 [今天, 今天+滚动窗口)
type CalendarQuery struct {
	From string `form:"from" binding:"omitempty,date"`
	To   string `form:"to"   binding:"omitempty,date"`
}

// DayURI 按日操作的路径参数
type DayURI struct {
	PropertyID string `uri:"id"   binding:"required,uuid"`
	Date       string `uri:"date" binding:"required,date"`
}

// GestureRequest 状态变更指令
type GestureRequest struct {
	Kind string `json:"kind" binding:"required,oneof=single compound"`
}

// EffectiveDayResponse 单日有效状态
type EffectiveDayResponse struct {
	Date   string `json:"date"`
	Status string `json:"status"` // available | closed | promotable | booked
}

// CalendarResponse 有效日历
type CalendarResponse struct {
	PropertyID string                 `json:"property_id"`
	From       string                 `json:"from"`
	To         string                 `json:"to"` // 不含
	Days       []EffectiveDayResponse `json:"days"`
}

// DayRecordResponse 日状态记录
type DayRecordResponse struct {
	PropertyID    string `json:"property_id"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	Source        string `json:"source"`
	SourceChannel string `json:"source_channel,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

// TapResponse 原始点击的判定结果
type TapResponse struct {
	State  string             `json:"state"` // armed | committed
	Kind   string             `json:"kind,omitempty"`
	Record *DayRecordResponse `json:"record,omitempty"`
}
