package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hostcal/internal/dto"
	"hostcal/internal/service"
	"hostcal/pkg/response"
)

// FeedLinkHandler 外部订阅链接 HTTP 处理器
type FeedLinkHandler struct {
	feedLinkSvc service.FeedLinkService
}

// NewFeedLinkHandler 创建 FeedLinkHandler
func NewFeedLinkHandler(feedLinkSvc service.FeedLinkService) *FeedLinkHandler {
	return &FeedLinkHandler{feedLinkSvc: feedLinkSvc}
}

// ListFeedLinks 获取房源的渠道订阅
// GET /api/v1/properties/:id/feed-links
func (h *FeedLinkHandler) ListFeedLinks(c *gin.Context) {
	var uri dto.PropertyURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "房源ID格式无效")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	links, err := h.feedLinkSvc.List(c.Request.Context(), uri.PropertyID, callerID, role)
	if err != nil {
		h.handleFeedLinkError(c, err)
		return
	}

	response.OK(c, gin.H{"list": links})
}

// PutFeedLink 设置渠道订阅地址
// PUT /api/v1/properties/:id/feed-links/:channel
func (h *FeedLinkHandler) PutFeedLink(c *gin.Context) {
	var uri dto.FeedLinkURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "路径参数无效")
		return
	}
	var req dto.PutFeedLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	link, err := h.feedLinkSvc.Put(c.Request.Context(), uri.PropertyID, callerID, role, uri.Channel, req.FeedURL)
	if err != nil {
		h.handleFeedLinkError(c, err)
		return
	}

	response.OK(c, link)
}

// DeleteFeedLink 删除渠道
// DELETE /api/v1/properties/:id/feed-links/:channel
func (h *FeedLinkHandler) DeleteFeedLink(c *gin.Context) {
	var uri dto.FeedLinkURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, 10001, "路径参数无效")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	if err := h.feedLinkSvc.Delete(c.Request.Context(), uri.PropertyID, callerID, role, uri.Channel); err != nil {
		h.handleFeedLinkError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *FeedLinkHandler) handleFeedLinkError(c *gin.Context, err error) {
	if handlePropertyError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrFeedLinkNotFound):
		response.NotFound(c, 23001, "订阅链接不存在")
	case errors.Is(err, service.ErrInvalidFeedURL):
		response.BadRequest(c, 23002, "订阅地址无效，仅支持 http/https/webcal")
	default:
		response.InternalError(c)
	}
}
