package model

import (
	"fmt"
	"time"
)

// DateLayout 日期的文本格式（ISO 8601 日历日）
const DateLayout = "2006-01-02"

// ── 日历日 ──
// 日历日统一表示为 UTC 零点的 time.Time，不携带时区语义

// DateOf 取 t 在其自身时区下的年月日，归一为 UTC 零点
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today 返回 now 在 loc 时区下的当天
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效日期 %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange 左闭右开的日期区间 [Start, End)
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange 以两个日历日构造区间，不做合法性校验
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: DateOf(start), End: DateOf(end)}
}

// Empty 区间不含任何日期
func (r DateRange) Empty() bool {
	return !r.End.After(r.Start)
}

// Contains 判断 d 是否落在区间内
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && d.Before(r.End)
}

// Overlaps 判断两个区间是否相交
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Len 区间天数
func (r DateRange) Len() int {
	if r.Empty() {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// Days 按顺序列出区间内每一天
func (r DateRange) Days() []time.Time {
	n := r.Len()
	days := make([]time.Time, 0, n)
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}
