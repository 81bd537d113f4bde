package service

import "errors"

// ── 业务错误 ──

var (
	ErrPropertyNotFound  = errors.New("房源不存在")
	ErrPropertyForbidden = errors.New("无权操作该房源")
	ErrInvalidDateRange  = errors.New("日期范围无效")
)

// 日状态
var (
	ErrImmutablePastDate = errors.New("该日期已过去，无法修改")
	ErrInvalidGesture    = errors.New("无效的手势类型")
)

// 同步与订阅
var (
	ErrSyncInProgress   = errors.New("该房源正在同步，请稍后重试")
	ErrFeedLinkNotFound = errors.New("订阅链接不存在")
	ErrInvalidFeedURL   = errors.New("订阅地址无效，仅支持 http/https/webcal")
	// ErrFeedFormat 与 ErrFeedFetch 只作为渠道级结果返回，不会让整次同步失败
	ErrFeedFormat = errors.New("订阅内容不是有效的日历文档")
	ErrFeedFetch  = errors.New("获取订阅内容失败")
)
