package service

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"hostcal/internal/model"
)

// ── 订阅解析器 ──────────────────────────────────────────────
//
// 将 RFC 5545 文档解析为按起始日排序的占用区间 [start, end)。
//   - DTSTART/DTEND 支持 DATE、浮动 DATE-TIME、UTC DATE-TIME 与 TZID；统一换算到 UTC 后截取日期
//   - DTEND 落在某天零点之后，则该天整天视为占用
//   - 无 DTEND 时使用 DURATION，否则占用一天；结束不晚于开始时同样按一天处理
//   - STATUS:CANCELLED 与 TRANSP:TRANSPARENT 的事件不占用
//   - RRULE/EXDATE 展开，最多 MaxRecurrence 次
//   - 单个事件无法解析时跳过；文档中找不到任何日历或事件结构才返回 ErrFeedFormat
// 解析器是纯函数，不做网络请求。
// ─────────────────────────────────────────────────────────────

// ParseOptions 解析参数
type ParseOptions struct {
	MaxRecurrence int       // 每个重复事件最多展开的次数
	Until         time.Time // 不展开该时刻及之后的重复；零值不限
}

const defaultMaxRecurrence = 500

// ParseFeed 解析订阅内容
func ParseFeed(raw []byte, opts ParseOptions) ([]model.DateRange, error) {
	if opts.MaxRecurrence <= 0 {
		opts.MaxRecurrence = defaultMaxRecurrence
	}

	events, err := parseEvents(raw)
	if err != nil {
		return nil, err
	}

	var ranges []model.DateRange
	for _, evt := range events {
		ranges = append(ranges, eventRanges(evt, opts)...)
	}
	return normalizeRanges(ranges), nil
}

// parseEvents 优先整体解析；整体解析失败时逐个 VEVENT 块抢救
// 没有任何 VEVENT 的文档（包括空日历）按格式错误处理，渠道保留上次占用
func parseEvents(raw []byte) ([]*ics.VEvent, error) {
	lines := splitLines(raw)

	if hasLine(lines, "BEGIN:VCALENDAR") {
		cal, err := ics.ParseCalendar(bytes.NewReader(raw))
		if err == nil && len(cal.Events()) > 0 {
			return cal.Events(), nil
		}
	}

	events, found := salvageEvents(lines)
	if !found {
		return nil, fmt.Errorf("%w: 未找到 VCALENDAR 或 VEVENT", ErrFeedFormat)
	}
	return events, nil
}

func splitLines(raw []byte) []string {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.Split(s, "\n")
}

func hasLine(lines []string, want string) bool {
	for _, l := range lines {
		if strings.EqualFold(strings.TrimSpace(l), want) {
			return true
		}
	}
	return false
}

// salvageEvents 把每个 BEGIN:VEVENT…END:VEVENT 块包进最小日历单独解析
// found 表示文档中至少存在一个 VEVENT 块（即使全部解析失败）
func salvageEvents(lines []string) (events []*ics.VEvent, found bool) {
	var block []string
	inEvent := false
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case strings.EqualFold(t, "BEGIN:VEVENT"):
			inEvent = true
			found = true
			block = []string{"BEGIN:VEVENT"}
		case strings.EqualFold(t, "END:VEVENT") && inEvent:
			block = append(block, "END:VEVENT")
			if evt := parseEventBlock(block); evt != nil {
				events = append(events, evt)
			}
			inEvent = false
			block = nil
		case inEvent:
			// 折行以空白开头，原样保留
			block = append(block, strings.TrimRight(l, "\r"))
		}
	}
	return events, found
}

func parseEventBlock(block []string) *ics.VEvent {
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n" + strings.Join(block, "\r\n") + "\r\nEND:VCALENDAR\r\n"
	cal, err := ics.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		return nil
	}
	evts := cal.Events()
	if len(evts) != 1 {
		return nil
	}
	return evts[0]
}

// eventRanges 单个事件展开后的占用区间；无法解析的事件返回 nil
func eventRanges(evt *ics.VEvent, opts ParseOptions) []model.DateRange {
	if p := evt.GetProperty(ics.ComponentPropertyStatus); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED") {
		return nil
	}
	if p := evt.GetProperty(ics.ComponentPropertyTransp); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), string(ics.TransparencyTransparent)) {
		return nil
	}

	start, dateOnly, err := propTime(evt.GetProperty(ics.ComponentPropertyDtStart))
	if err != nil {
		return nil
	}

	var end time.Time
	if p := evt.GetProperty(ics.ComponentPropertyDtEnd); p != nil {
		if end, _, err = propTime(p); err != nil {
			return nil
		}
	} else if p := evt.GetProperty(ics.ComponentPropertyDuration); p != nil {
		d, err := parseICSDuration(p.Value)
		if err != nil {
			return nil
		}
		end = start.Add(d)
	} else if dateOnly {
		end = start.AddDate(0, 0, 1)
	} else {
		end = start
	}
	span := end.Sub(start)

	occurrences := []time.Time{start}
	if p := evt.GetProperty(ics.ComponentPropertyRrule); p != nil {
		if expanded, ok := expandRecurrence(evt, p.Value, start, opts); ok {
			occurrences = expanded
		}
	}

	ranges := make([]model.DateRange, 0, len(occurrences))
	for _, occ := range occurrences {
		ranges = append(ranges, busyRange(occ, occ.Add(span)))
	}
	return ranges
}

// busyRange 把时刻区间换算为日期区间，至少一天
func busyRange(start, end time.Time) model.DateRange {
	start, end = start.UTC(), end.UTC()
	sd := model.DateOf(start)
	ed := model.DateOf(end)
	if end.After(ed) {
		ed = ed.AddDate(0, 0, 1)
	}
	if !ed.After(sd) {
		ed = sd.AddDate(0, 0, 1)
	}
	return model.DateRange{Start: sd, End: ed}
}

// expandRecurrence 展开 RRULE 并排除 EXDATE；RRULE 无法解析时 ok=false，按单次事件处理
func expandRecurrence(evt *ics.VEvent, rule string, start time.Time, opts ParseOptions) ([]time.Time, bool) {
	ropt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, false
	}
	ropt.Dtstart = start
	r, err := rrule.NewRRule(*ropt)
	if err != nil {
		return nil, false
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, p := range evt.GetProperties(ics.ComponentPropertyExdate) {
		for _, v := range strings.Split(p.Value, ",") {
			ex := *p
			ex.Value = strings.TrimSpace(v)
			if t, _, err := propTime(&ex); err == nil {
				set.ExDate(t)
			}
		}
	}

	next := set.Iterator()
	var out []time.Time
	for len(out) < opts.MaxRecurrence {
		t, ok := next()
		if !ok {
			break
		}
		if !opts.Until.IsZero() && !t.Before(opts.Until) {
			break
		}
		out = append(out, t)
	}
	return out, true
}

// propTime 解析日期/时间属性；浮动时间按 UTC 处理
func propTime(p *ics.IANAProperty) (t time.Time, dateOnly bool, err error) {
	if p == nil {
		return time.Time{}, false, fmt.Errorf("缺少时间属性")
	}
	val := strings.TrimSpace(p.Value)

	loc := time.UTC
	if tz, ok := p.ICalParameters[string(ics.ParameterTzid)]; ok && len(tz) > 0 {
		if l, err := time.LoadLocation(strings.Trim(tz[0], `"`)); err == nil {
			loc = l
		}
	}

	switch {
	case len(val) == 8:
		t, err = time.ParseInLocation("20060102", val, time.UTC)
		return t, true, err
	case strings.HasSuffix(val, "Z"):
		t, err = time.ParseInLocation("20060102T150405Z", val, time.UTC)
		return t, false, err
	default:
		t, err = time.ParseInLocation("20060102T150405", val, loc)
		return t, false, err
	}
}

var icsDurationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseICSDuration 解析 RFC 5545 DURATION（如 P1D、PT36H、P1W）
func parseICSDuration(s string) (time.Duration, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	m := icsDurationRe.FindStringSubmatch(u)
	if m == nil || strings.HasSuffix(u, "P") || strings.HasSuffix(u, "T") {
		return 0, fmt.Errorf("无效的 DURATION %q", s)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("无效的 DURATION %q", s)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// normalizeRanges 按 (start, end) 排序并去除完全重复的区间
func normalizeRanges(ranges []model.DateRange) []model.DateRange {
	sort.Slice(ranges, func(i, j int) bool {
		if !ranges[i].Start.Equal(ranges[j].Start) {
			return ranges[i].Start.Before(ranges[j].Start)
		}
		return ranges[i].End.Before(ranges[j].End)
	})
	out := ranges[:0]
	for i, r := range ranges {
		if i > 0 && r.Start.Equal(out[len(out)-1].Start) && r.End.Equal(out[len(out)-1].End) {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return []model.DateRange{}
	}
	return out
}
