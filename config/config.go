package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Gesture  GestureConfig  `mapstructure:"gesture"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Feed     FeedConfig     `mapstructure:"feed"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（同步租约的可选后端 + 公共订阅限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// Token 由外部房源注册中心签发，本服务只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// 租约后端
const (
	LeaseBackendDB    = "db"
	LeaseBackendRedis = "redis"
)

// SyncConfig 外部日历同步配置
type SyncConfig struct {
	Cron          string        `mapstructure:"cron"`           // 定时同步 cron 表达式
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`  // 单个订阅抓取超时
	LeaseTTL      time.Duration `mapstructure:"lease_ttl"`      // 同步租约有效期
	LeaseBackend  string        `mapstructure:"lease_backend"`  // db | redis
	MaxFeedBytes  int64         `mapstructure:"max_feed_bytes"` // 订阅响应体上限
	HorizonDays   int           `mapstructure:"horizon_days"`   // 滚动窗口天数
	MaxRecurrence int           `mapstructure:"max_recurrence"` // RRULE 展开上限
}

// GestureConfig 单击/双击判定配置
type GestureConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// BrokerConfig RabbitMQ 配置，URL 为空时不发布同步事件
type BrokerConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// FeedConfig 对外日历订阅配置
type FeedConfig struct {
	ProductID string `mapstructure:"product_id"`
	RateLimit int    `mapstructure:"rate_limit"` // 每 IP 每分钟请求数
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("HOSTCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "hostcal")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sync.cron", "*/30 * * * *")
	v.SetDefault("sync.fetch_timeout", "30s")
	v.SetDefault("sync.lease_ttl", "5m")
	v.SetDefault("sync.lease_backend", LeaseBackendDB)
	v.SetDefault("sync.max_feed_bytes", 5*1024*1024)
	v.SetDefault("sync.horizon_days", 365)
	v.SetDefault("sync.max_recurrence", 500)

	v.SetDefault("gesture.window", "250ms")

	v.SetDefault("broker.url", "")
	v.SetDefault("broker.queue", "availability.synced")

	v.SetDefault("feed.product_id", "-//hostcal//Availability Feed//EN")
	v.SetDefault("feed.rate_limit", 60)
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Sync.HorizonDays <= 0 {
		return fmt.Errorf("配置校验失败: sync.horizon_days 必须大于 0")
	}
	if c.Sync.FetchTimeout <= 0 || c.Sync.LeaseTTL <= 0 {
		return fmt.Errorf("配置校验失败: sync.fetch_timeout 与 sync.lease_ttl 必须大于 0")
	}
	switch c.Sync.LeaseBackend {
	case LeaseBackendDB, LeaseBackendRedis:
	default:
		return fmt.Errorf("配置校验失败: 未知的 sync.lease_backend %q", c.Sync.LeaseBackend)
	}
	if c.Gesture.Window <= 0 {
		return fmt.Errorf("配置校验失败: gesture.window 必须大于 0")
	}
	return nil
}
