package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hostcal/internal/dto"
	"hostcal/internal/service"
	"hostcal/pkg/response"
)

// SyncHandler 外部日历同步 HTTP 处理器
type SyncHandler struct {
	syncSvc service.SyncService
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(syncSvc service.SyncService) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// SyncNow 手动触发同步
// POST /api/v1/properties/:id/sync
func (h *SyncHandler) SyncNow(c *gin.Context) {
	var uri dto.PropertyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "房源ID格式无效")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.syncSvc.SyncNow(c.Request.Context(), uri.PropertyID, callerID, role)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, result)
}

// ListRuns 同步历史
// GET /api/v1/properties/:id/sync-runs?limit=
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var uri dto.PropertyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "房源ID格式无效")
		return
	}
	var q dto.SyncRunListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	runs, err := h.syncSvc.ListRuns(c.Request.Context(), uri.PropertyID, callerID, role, q.Limit)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	response.OK(c, gin.H{"list": runs})
}

func (h *SyncHandler) handleSyncError(c *gin.Context, err error) {
	if handlePropertyError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		response.Conflict(c, 22001, "该房源正在同步，请稍后重试")
	default:
		response.InternalError(c)
	}
}
