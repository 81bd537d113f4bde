package service

import (
	"sync"
	"time"

	"hostcal/internal/model"
)

// GestureKind 房东对单日的操作类型
type GestureKind string

const (
	// GestureSingle 单击：available ↔ closed，promotable 退回 closed
	GestureSingle GestureKind = "single"
	// GestureCompound 双击：进入或退出 promotable
	GestureCompound GestureKind = "compound"
)

// ParseGestureKind 校验操作类型
func ParseGestureKind(s string) (GestureKind, error) {
	switch k := GestureKind(s); k {
	case GestureSingle, GestureCompound:
		return k, nil
	}
	return "", ErrInvalidGesture
}

// NextStatus 计算操作后的日状态
func NextStatus(current model.DayStatus, kind GestureKind) model.DayStatus {
	switch kind {
	case GestureCompound:
		if current == model.DayPromotable {
			return model.DayAvailable
		}
		return model.DayPromotable
	default:
		if current == model.DayAvailable {
			return model.DayClosed
		}
		// closed → available；promotable → closed
		if current == model.DayClosed {
			return model.DayAvailable
		}
		return model.DayClosed
	}
}

// ── 单击/双击判定 ──
//
// 每个 (房源, 日期, 操作人) 一个状态：Idle | Armed。
// 第一次点击进入 Armed 并启动计时器；窗口内第二次点击取消计时器，判定为双击；
// 计时器到期则判定为单击。状态只在内存中，不持久化。

// GestureKey 判定状态的键
type GestureKey struct {
	PropertyID string
	Date       string
	Actor      string
}

// TapOutcome 点击的即时判定结果
type TapOutcome int

const (
	// TapArmed 已进入等待，单击将在窗口到期后提交
	TapArmed TapOutcome = iota
	// TapCompound 窗口内第二次点击，调用方应立即提交双击
	TapCompound
)

type gestureTimer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) gestureTimer

type armedTap struct {
	timer gestureTimer
}

// GestureDisambiguator 单击/双击判定器，并发安全
type GestureDisambiguator struct {
	window   time.Duration
	after    afterFunc
	onSingle func(GestureKey)

	mu    sync.Mutex
	armed map[GestureKey]*armedTap
}

// NewGestureDisambiguator 创建判定器；onSingle 在计时器 goroutine 中调用
func NewGestureDisambiguator(window time.Duration, onSingle func(GestureKey)) *GestureDisambiguator {
	return &GestureDisambiguator{
		window: window,
		after: func(d time.Duration, f func()) gestureTimer {
			return time.AfterFunc(d, f)
		},
		onSingle: onSingle,
		armed:    make(map[GestureKey]*armedTap),
	}
}

// Tap 记录一次点击
func (g *GestureDisambiguator) Tap(key GestureKey) TapOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	if a, ok := g.armed[key]; ok {
		// 计时器可能已触发但尚未拿到锁，fire 会发现条目已被移除而放弃提交
		delete(g.armed, key)
		a.timer.Stop()
		return TapCompound
	}

	a := &armedTap{}
	a.timer = g.after(g.window, func() { g.fire(key, a) })
	g.armed[key] = a
	return TapArmed
}

func (g *GestureDisambiguator) fire(key GestureKey, a *armedTap) {
	g.mu.Lock()
	if g.armed[key] != a {
		g.mu.Unlock()
		return
	}
	delete(g.armed, key)
	g.mu.Unlock()

	g.onSingle(key)
}

// Pending 是否处于等待判定状态
func (g *GestureDisambiguator) Pending(key GestureKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.armed[key]
	return ok
}

// Close 停止所有计时器，未判定的点击被丢弃
func (g *GestureDisambiguator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, a := range g.armed {
		a.timer.Stop()
		delete(g.armed, k)
	}
}
