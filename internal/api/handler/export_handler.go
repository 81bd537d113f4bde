package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"hostcal/internal/dto"
	"hostcal/internal/service"
	"hostcal/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportCalendar 导出有效日历
// GET /api/v1/properties/:id/calendar/export?from=&to=
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
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

	buf, filename, err := h.exportSvc.ExportCalendar(c.Request.Context(), uri.PropertyID, callerID, role, &q)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if handlePropertyError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 21002, "日期范围无效")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
