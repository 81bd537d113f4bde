package service

import (
	"fmt"

	ics "github.com/arran4/golang-ical"

	"hostcal/internal/model"
)

// FeedGenerator 生成对外发布的可用性日历
//
// 只输出占用区间：booked 与 closed 视为占用，promotable 与 available 不出现。
// 相同输入产生逐字节相同的输出：DTSTAMP 取区间起始日零点，UID 由区间与房源决定。
type FeedGenerator struct {
	productID string
}

// NewFeedGenerator 创建生成器
func NewFeedGenerator(productID string) *FeedGenerator {
	return &FeedGenerator{productID: productID}
}

// Generate 按日期升序的有效状态生成 RFC 5545 文档（CRLF 换行）
func (g *FeedGenerator) Generate(propertyID string, days []EffectiveDay) []byte {
	cal := ics.NewCalendar()
	cal.SetProductId(g.productID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)

	for _, r := range busyRuns(days) {
		uid := fmt.Sprintf("%s-%s-%s@hostcal",
			r.Start.Format("20060102"), r.End.Format("20060102"), propertyID)
		evt := cal.AddEvent(uid)
		evt.SetDtStampTime(r.Start)
		evt.SetAllDayStartAt(r.Start)
		evt.SetAllDayEndAt(r.End)
		evt.SetSummary("Not available")
		evt.SetTimeTransparency(ics.TransparencyOpaque)
	}

	return []byte(cal.Serialize(ics.WithNewLineWindows))
}

// busyRuns 把连续的占用日合并为区间
func busyRuns(days []EffectiveDay) []model.DateRange {
	var runs []model.DateRange
	for _, d := range days {
		if !d.Status.Busy() {
			continue
		}
		next := d.Date.AddDate(0, 0, 1)
		if n := len(runs); n > 0 && runs[n-1].End.Equal(d.Date) {
			runs[n-1].End = next
			continue
		}
		runs = append(runs, model.DateRange{Start: d.Date, End: next})
	}
	return runs
}
