package config

import (
	"os"
	"strconv"

	"moodlog-insights/pkg/config"
)

// Config 心情洞察服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig

	// 洞察服务特定配置
	Insights struct {
		// 每日边界检查的本地时刻（0-23），周报生成和召回检查都挂在这次检查上
		DailyCheckHour int

		// 通知事件流名称，如 "moodlog:notifications"
		NotificationStream string

		// 推送网关（为空时禁用推送，只发流事件）
		Push config.PushGatewayConfig

		// 周报就绪轮询（有限次数 + 固定退避）
		Review struct {
			AwaitAttempts int // 默认 3 次
			AwaitBackoff  int // 退避间隔（秒），默认 2 秒
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "moodlog")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	// 洞察服务配置
	if v, err := strconv.Atoi(getEnv("DAILY_CHECK_HOUR", "6")); err == nil && v >= 0 && v <= 23 {
		cfg.Insights.DailyCheckHour = v
	} else {
		cfg.Insights.DailyCheckHour = 6 // 默认每天早上6点
	}
	cfg.Insights.NotificationStream = getEnv("NOTIFICATION_STREAM", "moodlog:notifications")
	cfg.Insights.Push.BaseURL = getEnv("PUSH_GATEWAY_BASE_URL", "")
	cfg.Insights.Push.APIKey = getEnv("PUSH_GATEWAY_API_KEY", "")

	if v, err := strconv.Atoi(getEnv("REVIEW_AWAIT_ATTEMPTS", "3")); err == nil && v > 0 {
		cfg.Insights.Review.AwaitAttempts = v
	} else {
		cfg.Insights.Review.AwaitAttempts = 3
	}
	if v, err := strconv.Atoi(getEnv("REVIEW_AWAIT_BACKOFF", "2")); err == nil && v > 0 {
		cfg.Insights.Review.AwaitBackoff = v
	} else {
		cfg.Insights.Review.AwaitBackoff = 2
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
