package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hostcal/internal/dto"
	"hostcal/internal/service"
	"hostcal/pkg/response"
)

// PublicFeedHandler 对外日历订阅 HTTP 处理器（无需认证）
type PublicFeedHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewPublicFeedHandler 创建 PublicFeedHandler
func NewPublicFeedHandler(availabilitySvc service.AvailabilityService) *PublicFeedHandler {
	return &PublicFeedHandler{availabilitySvc: availabilitySvc}
}

// GetFeed 返回房源的占用日历
// GET /api/v1/feeds/:property_id/calendar.ics
func (h *PublicFeedHandler) GetFeed(c *gin.Context) {
	var uri dto.PublicFeedURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.NotFound(c, 20001, "房源不存在")
		return
	}

	doc, err := h.availabilitySvc.PublicFeed(c.Request.Context(), uri.PropertyID)
	if err != nil {
		if !handlePropertyError(c, err) {
			response.InternalError(c)
		}
		return
	}

	sum := sha256.Sum256(doc)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=300")
	if etagMatch(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "text/calendar; charset=utf-8", doc)
}

// etagMatch 支持逗号分隔的多个 ETag 与 *
func etagMatch(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, v := range strings.Split(header, ",") {
		v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
		if v == "*" || v == etag {
			return true
		}
	}
	return false
}
