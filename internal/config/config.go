package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"demonlist/pkg/logger"
)

type Config struct {
	// 服务器配置
	Environment string `json:"environment"`
	Port        string `json:"port"`
	LogLevel    string `json:"logLevel"`

	// MySQL 配置
	MySQLDSN       string `json:"mysqlDSN"`
	MySQLMaxConns  int    `json:"mysqlMaxConns"`
	MySQLIdleConns int    `json:"mysqlIdleConns"`

	// Redis 配置
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDB"`
	RedisPoolSize int    `json:"redisPoolSize"`

	// 分值曲线配置
	CurveBasePoints float64 `json:"curveBasePoints"`
	CurveDecayRate  float64 `json:"curveDecayRate"`
	CurveFloorValue int     `json:"curveFloorValue"`
	CurveTailRank   int     `json:"curveTailRank"`

	// 记录计分配置
	DefaultMinPercentage int    `json:"defaultMinPercentage"`
	CreditMode           string `json:"creditMode"` // "linear" or "full_only"

	// 排行榜配置
	EnableCache    bool `json:"enableCache"`
	CacheSize      int  `json:"cacheSize"`
	RebuildOnStart bool `json:"rebuildOnStart"`

	// 通知配置
	WebhookURL string `json:"webhookURL"`

	// 性能配置
	SnapshotInterval time.Duration `json:"snapshotInterval"`
	WriteTimeout     time.Duration `json:"writeTimeout"`
	ReadTimeout      time.Duration `json:"readTimeout"`

	// 监控配置
	MetricsEnabled bool   `json:"metricsEnabled"`
	MetricsPort    string `json:"metricsPort"`
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	cfg := &Config{
		// 服务器配置
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// MySQL 配置
		MySQLDSN:       getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/demonlist?parseTime=true"),
		MySQLMaxConns:  getEnvAsInt("MYSQL_MAX_CONNS", 100),
		MySQLIdleConns: getEnvAsInt("MYSQL_IDLE_CONNS", 10),

		// Redis 配置
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),

		// 分值曲线配置
		CurveBasePoints: getEnvAsFloat("CURVE_BASE_POINTS", 250),
		CurveDecayRate:  getEnvAsFloat("CURVE_DECAY_RATE", 0.9475),
		CurveFloorValue: getEnvAsInt("CURVE_FLOOR_VALUE", 5),
		CurveTailRank:   getEnvAsInt("CURVE_TAIL_RANK", 150),

		// 记录计分配置
		DefaultMinPercentage: getEnvAsInt("DEFAULT_MIN_PERCENTAGE", 100),
		CreditMode:           getEnv("CREDIT_MODE", "linear"),

		// 排行榜配置
		EnableCache:    getEnvAsBool("ENABLE_CACHE", true),
		CacheSize:      getEnvAsInt("CACHE_SIZE", 10000),
		RebuildOnStart: getEnvAsBool("REBUILD_ON_START", true),

		// 通知配置
		WebhookURL: getEnv("WEBHOOK_URL", ""),

		// 性能配置
		SnapshotInterval: getEnvAsDuration("SNAPSHOT_INTERVAL", 1*time.Hour),
		WriteTimeout:     getEnvAsDuration("WRITE_TIMEOUT", 10*time.Second),
		ReadTimeout:      getEnvAsDuration("READ_TIMEOUT", 5*time.Second),

		// 监控配置
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		logger.NewLogger("config").Warn("Configuration validation warning", "error", err)
	}

	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.MySQLDSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.CurveBasePoints <= 0 {
		return fmt.Errorf("CURVE_BASE_POINTS must be positive")
	}

	if c.CurveDecayRate <= 0 || c.CurveDecayRate >= 1 {
		return fmt.Errorf("CURVE_DECAY_RATE must be in (0, 1)")
	}

	if c.CurveFloorValue <= 0 {
		return fmt.Errorf("CURVE_FLOOR_VALUE must be positive")
	}

	if c.CurveTailRank < 1 {
		return fmt.Errorf("CURVE_TAIL_RANK must be at least 1")
	}

	if c.DefaultMinPercentage < 1 || c.DefaultMinPercentage > 100 {
		return fmt.Errorf("DEFAULT_MIN_PERCENTAGE must be in [1, 100]")
	}

	if c.CreditMode != "linear" && c.CreditMode != "full_only" {
		return fmt.Errorf("CREDIT_MODE must be 'linear' or 'full_only'")
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive")
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as integer, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as float, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as boolean, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.NewLogger("config").Warn(
			"Failed to parse environment variable as duration, using default",
			"key", key,
			"value", valueStr,
			"default", defaultValue,
			"error", err,
		)
		return defaultValue
	}

	return value
}
