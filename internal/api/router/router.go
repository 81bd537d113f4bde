package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hostcal/config"
	"hostcal/internal/api/handler"
	"hostcal/internal/api/middleware"
	"hostcal/internal/dto"
	"hostcal/pkg/jwt"
	"hostcal/pkg/metrics"
	"hostcal/pkg/redis"
)

// maxBodyBytes 请求体上限，接口只接收很小的 JSON
const maxBodyBytes = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
// rdb、m 均可为 nil：无 Redis 时不限流，无指标时不暴露 /metrics
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("注册参数校验器失败: %w", err)
		}
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 对外日历订阅（无需认证，按 IP 限流）
		feeds := v1.Group("/feeds")
		feeds.Use(middleware.RateLimit(rdb, cfg.Feed.RateLimit, time.Minute))
		{
			feeds.GET("/:property_id/calendar.ics", h.PublicFeed.GetFeed)
		}

		// 需要认证的路由；房源归属在 Service 层校验
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		authorized.Use(middleware.RoleAuth(jwt.RoleHost, jwt.RoleAdmin))
		{
			props := authorized.Group("/properties/:id")
			{
				// 日历与日状态
				props.GET("/calendar", h.Availability.GetCalendar)
				props.GET("/calendar/export", h.Export.ExportCalendar)
				props.POST("/days/:date/gesture", h.Availability.ApplyGesture)
				props.POST("/days/:date/taps", h.Availability.Tap)

				// 外部日历同步
				props.POST("/sync", h.Sync.SyncNow)
				props.GET("/sync-runs", h.Sync.ListRuns)

				// 渠道订阅链接
				props.GET("/feed-links", h.FeedLink.ListFeedLinks)
				props.PUT("/feed-links/:channel", h.FeedLink.PutFeedLink)
				props.DELETE("/feed-links/:channel", h.FeedLink.DeleteFeedLink)
			}
		}
	}

	return r, nil
}
