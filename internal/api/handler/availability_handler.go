package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hostcal/internal/dto"
	"hostcal/internal/service"
	"hostcal/pkg/response"
)

// AvailabilityHandler 日历与日状态 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// GetCalendar 获取有效日历
// GET /api/v1/properties/:id/calendar?from=&to=
func (h *AvailabilityHandler) GetCalendar(c *gin.Context) {
	var uri dto.PropertyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "房源ID格式无效")
		return
	}
	var q dto.CalendarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "日期格式无效，应为 YYYY-MM-DD")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	cal, err := h.availabilitySvc.GetCalendar(c.Request.Context(), uri.PropertyID, callerID, role, &q)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, cal)
}

// ApplyGesture 提交单击或双击
// POST /api/v1/properties/:id/days/:date/gesture
func (h *AvailabilityHandler) ApplyGesture(c *gin.Context) {
	var uri dto.DayURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "路径参数无效")
		return
	}
	var req dto.GestureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.availabilitySvc.ApplyGesture(c.Request.Context(), uri.PropertyID, callerID, role, uri.Date, req.Kind)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, rec)
}

// Tap 原始点击，窗口内的第二次点击判定为双击
// POST /api/v1/properties/:id/days/:date/taps
func (h *AvailabilityHandler) Tap(c *gin.Context) {
	var uri dto.DayURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "路径参数无效")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.availabilitySvc.Tap(c.Request.Context(), uri.PropertyID, callerID, role, uri.Date)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	if result.State == service.TapStateArmed {
		response.Accepted(c, result)
		return
	}
	response.OK(c, result)
}

func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	if handlePropertyError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrImmutablePastDate):
		response.BadRequest(c, 21001, "该日期已过去，无法修改")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 21002, "日期范围无效")
	case errors.Is(err, service.ErrInvalidGesture):
		response.BadRequest(c, 21003, "无效的手势类型")
	default:
		response.InternalError(c)
	}
}
