package service

import (
	"time"

	"hostcal/internal/model"
)

// ── 对账 ──────────────────────────────────────────────────
//
// 优先级（高者胜出）：
//   1. pending / confirmed 预订覆盖 ⇒ booked，任何来源都不能覆盖
//   2. 成功拉取的外部订阅覆盖 ⇒ closed，并回写 DayRecord；promotable 的日子不受订阅影响
//   3. DayRecord 自身状态
//   4. 无记录 ⇒ available
// 有效状态只派生不落库；唯一的写方向是订阅占用回写到 DayRecord。
// ─────────────────────────────────────────────────────────────

// EffectiveDay 单日有效状态
type EffectiveDay struct {
	Date   time.Time
	Status model.EffectiveStatus
}

// ChannelFeed 一个渠道本次同步的解析结果
type ChannelFeed struct {
	Channel string
	Busy    []model.DateRange
	OK      bool // 拉取与解析均成功；失败的渠道保留上次已回写的占用
}

// Reconciliation 一次对账的结果
type Reconciliation struct {
	Days     []EffectiveDay
	Writes   []model.DayRecord // 需要回写的记录，每条按键原子写入
	Blocked  map[string]int    // 渠道 → 新关闭天数
	Released map[string]int    // 渠道 → 释放的过期同步关闭天数
}

// EffectiveView 只读计算：DayRecord（已包含历次同步回写）+ 预订
func EffectiveView(window model.DateRange, records []model.DayRecord, reservations []model.Reservation) []EffectiveDay {
	byDate := indexRecords(records)
	days := make([]EffectiveDay, 0, window.Len())
	for _, d := range window.Days() {
		days = append(days, EffectiveDay{Date: d, Status: effectiveOf(byDate[d], booked(reservations, d))})
	}
	return days
}

// Reconcile 合并预订、DayRecord 与各渠道订阅，给出有效状态与回写计划
//
// 回写规则（只作用于 today 及之后）：
//   - 被订阅覆盖、未被预订、记录为空或 available ⇒ 写 closed(sync, 首个覆盖渠道)，计入该渠道新关闭
//   - 已是同步关闭但原渠道不再覆盖、另有渠道覆盖 ⇒ 改记到首个覆盖渠道，不计数
//   - 同步关闭且无任何渠道覆盖 ⇒ 仅在所有渠道本次都成功时释放为 available
//   - 房东设置的 closed 与 promotable 从不被同步改写
func Reconcile(propertyID string, window model.DateRange, today time.Time,
	records []model.DayRecord, reservations []model.Reservation, feeds []ChannelFeed) *Reconciliation {

	byDate := indexRecords(records)
	allOK := true
	for _, f := range feeds {
		if !f.OK {
			allOK = false
		}
	}

	res := &Reconciliation{
		Days:     make([]EffectiveDay, 0, window.Len()),
		Blocked:  make(map[string]int),
		Released: make(map[string]int),
	}
	for _, f := range feeds {
		res.Blocked[f.Channel] = 0
		res.Released[f.Channel] = 0
	}

	for _, d := range window.Days() {
		rec := byDate[d]
		isBooked := booked(reservations, d)

		if !d.Before(today) {
			covering := coveringChannels(feeds, d)
			var write *model.DayRecord

			switch {
			case len(covering) > 0 && !isBooked:
				switch {
				case rec == nil || rec.Status == model.DayAvailable:
					write = syncRecord(propertyID, d, model.DayClosed, covering[0])
					res.Blocked[covering[0]]++
				case rec.Status == model.DayClosed && rec.Source == model.SourceSync && !contains(covering, rec.SourceChannel):
					write = syncRecord(propertyID, d, model.DayClosed, covering[0])
				}
			case len(covering) == 0 && allOK && rec != nil && rec.Status == model.DayClosed && rec.Source == model.SourceSync:
				write = syncRecord(propertyID, d, model.DayAvailable, rec.SourceChannel)
				res.Released[rec.SourceChannel]++
			}

			if write != nil {
				res.Writes = append(res.Writes, *write)
				rec = write
			}
		}

		res.Days = append(res.Days, EffectiveDay{Date: d, Status: effectiveOf(rec, isBooked)})
	}
	return res
}

// ReleaseBeyondWindow 滚动窗口之后遗留的同步关闭（窗口缩短前写入）
// 规则与窗口内一致：所有渠道本次都成功，且没有渠道仍覆盖该日时释放
func ReleaseBeyondWindow(window model.DateRange, feeds []ChannelFeed, blocked []model.DayRecord) []model.DayRecord {
	for _, f := range feeds {
		if !f.OK {
			return nil
		}
	}

	var writes []model.DayRecord
	for i := range blocked {
		rec := &blocked[i]
		d := model.DateOf(rec.Date)
		if d.Before(window.End) || !rec.SyncBlockedBy(rec.SourceChannel) {
			continue
		}
		if coveredBy(feeds, model.NewDateRange(d, d.AddDate(0, 0, 1))) {
			continue
		}
		writes = append(writes, *syncRecord(rec.PropertyID, d, model.DayAvailable, rec.SourceChannel))
	}
	return writes
}

func effectiveOf(rec *model.DayRecord, isBooked bool) model.EffectiveStatus {
	if isBooked {
		return model.EffectiveBooked
	}
	if rec == nil {
		return model.EffectiveAvailable
	}
	switch rec.Status {
	case model.DayClosed:
		return model.EffectiveClosed
	case model.DayPromotable:
		return model.EffectivePromotable
	default:
		return model.EffectiveAvailable
	}
}

func indexRecords(records []model.DayRecord) map[time.Time]*model.DayRecord {
	m := make(map[time.Time]*model.DayRecord, len(records))
	for i := range records {
		m[model.DateOf(records[i].Date)] = &records[i]
	}
	return m
}

func booked(reservations []model.Reservation, d time.Time) bool {
	for i := range reservations {
		if reservations[i].Active() && reservations[i].Range().Contains(d) {
			return true
		}
	}
	return false
}

// coveringChannels 按渠道顺序返回覆盖该日且本次成功的渠道
func coveringChannels(feeds []ChannelFeed, d time.Time) []string {
	var out []string
	for _, f := range feeds {
		if !f.OK {
			continue
		}
		for _, r := range f.Busy {
			if r.Contains(d) {
				out = append(out, f.Channel)
				break
			}
		}
	}
	return out
}

func coveredBy(feeds []ChannelFeed, day model.DateRange) bool {
	for _, f := range feeds {
		for _, r := range f.Busy {
			if r.Overlaps(day) {
				return true
			}
		}
	}
	return false
}

func syncRecord(propertyID string, d time.Time, status model.DayStatus, channel string) *model.DayRecord {
	return &model.DayRecord{
		PropertyID:    propertyID,
		Date:          d,
		Status:        status,
		Source:        model.SourceSync,
		SourceChannel: channel,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
