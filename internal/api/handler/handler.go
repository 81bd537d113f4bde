package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hostcal/internal/service"
	pkgerrors "hostcal/pkg/errors"
	"hostcal/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Availability *AvailabilityHandler
	Sync         *SyncHandler
	FeedLink     *FeedLinkHandler
	PublicFeed   *PublicFeedHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Availability: NewAvailabilityHandler(svc.Availability),
		Sync:         NewSyncHandler(svc.Sync),
		FeedLink:     NewFeedLinkHandler(svc.FeedLink),
		PublicFeed:   NewPublicFeedHandler(svc.Availability),
		Export:       NewExportHandler(svc.Export),
	}
}

// handlePropertyError 各模块共用的房源与存储错误映射，已处理返回 true
func handlePropertyError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrPropertyNotFound):
		response.NotFound(c, 20001, "房源不存在")
	case errors.Is(err, service.ErrPropertyForbidden):
		response.Forbidden(c, 20002, "无权操作该房源")
	case errors.Is(err, pkgerrors.ErrPersistence):
		response.Error(c, http.StatusInternalServerError, 50001, pkgerrors.ErrPersistence.Error())
	default:
		return false
	}
	return true
}
