package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hostcal/config"
)

// Client Redis 客户端封装
// 用于同步租约（lease_backend=redis 时）与公共订阅接口限流
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 同步租约 ──

const leasePrefix = "sync:lease:"

// releaseScript 仅当持有者匹配时删除租约，避免误删他人续上的租约
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire 以 SET NX PX 获取房源级同步租约
// 返回 false 表示租约被他人持有且尚未过期
func (c *Client) Acquire(ctx context.Context, propertyID, holder string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, leasePrefix+propertyID, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取同步租约失败: %w", err)
	}
	return ok, nil
}

// Release 释放租约；持有者不匹配（已过期被他人获取）时静默忽略
func (c *Client) Release(ctx context.Context, propertyID, holder string) error {
	n, err := releaseScript.Run(ctx, c.rdb, []string{leasePrefix + propertyID}, holder).Int()
	if err != nil {
		return fmt.Errorf("释放同步租约失败: %w", err)
	}
	if n == 0 {
		c.logger.Warn("租约已过期或被其他实例持有", zap.String("property_id", propertyID))
	}
	return nil
}

// ── 限流 ──

// CheckRateLimit 基于有序集合的滑动窗口限流
// 返回 true 表示本次请求允许通过
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)
	windowStart := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", windowStart)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
