package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 支援的 AI provider 名稱
const (
	ProviderGemini    = "gemini"
	ProviderLLMStudio = "llmstudio"
	ProviderOpenAI    = "openai"
)

// 支援的 palette 儲存後端
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	AI          AIConfig        `mapstructure:"ai"`
	Queue       QueueConfig     `mapstructure:"queue"`
	Store       StoreConfig     `mapstructure:"store"`
	Auth        AuthConfig      `mapstructure:"auth"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
	LogDir      string          `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// AIConfig AI provider 設定（程序層級，不依使用者保存）
type AIConfig struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	URL           string        `mapstructure:"url"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	LocalTimeout  time.Duration `mapstructure:"local_timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// QueueConfig AI 後端呼叫的並行限制
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// StoreConfig palette 儲存設定
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	DSN           string `mapstructure:"dsn"`
}

// AuthConfig JWT 驗證設定
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// TracingConfig OpenTelemetry 設定
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// envBindings 設定鍵與環境變數的對應
var envBindings = map[string]string{
	"ai.provider":          "AI_PROVIDER",
	"ai.api_key":           "AI_API_KEY",
	"ai.url":               "AI_URL",
	"ai.model":             "AI_MODEL",
	"ai.timeout":           "AI_TIMEOUT",
	"ai.local_timeout":     "AI_LOCAL_TIMEOUT",
	"ai.health_timeout":    "AI_HEALTH_TIMEOUT",
	"queue.workers":        "QUEUE_WORKERS",
	"queue.max_size":       "QUEUE_MAX_SIZE",
	"store.driver":         "STORE_DRIVER",
	"store.redis_addr":     "REDIS_ADDR",
	"store.redis_password": "REDIS_PASSWORD",
	"store.redis_db":       "REDIS_DB",
	"store.dsn":            "DATABASE_URL",
	"auth.jwt_secret":      "JWT_SECRET",
	"server.port":          "PORT",
	"server.cors_origins":  "CORS_ORIGIN",
	"rate_limit.enabled":   "RATE_LIMIT_ENABLED",
	"rate_limit.requests":  "RATE_LIMIT_REQUESTS",
	"rate_limit.window":    "RATE_LIMIT_WINDOW",
	"tracing.enabled":      "OTEL_ENABLED",
	"tracing.endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.insecure":     "OTEL_EXPORTER_OTLP_INSECURE",
	"tracing.sample_ratio": "OTEL_SAMPLER_RATIO",
	"dedup_window":         "DEDUP_WINDOW",
	"log_level":            "LOG_LEVEL",
	"log_dir":              "LOG_DIR",
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時只提示，環境變數仍然有效
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := newViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// LoadAIConfig 重新讀取 AI 設定；provider factory 每次建構時呼叫
func LoadAIConfig() (AIConfig, error) {
	// 環境變數綁定只在完整 Unmarshal 時生效
	v := newViper()
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return AIConfig{}, fmt.Errorf("failed to unmarshal ai config: %w", err)
	}
	return config.AI, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "paint-mixer")

	// 伺服器設定
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "140s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{"*"})

	// AI 設定
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.local_timeout", "120s")
	v.SetDefault("ai.health_timeout", "30s")

	// 隊列設定
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_size", 100)

	// 儲存設定
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.redis_addr", "localhost:6379")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", "1m")

	// 追蹤設定
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 0.1)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.AI.Provider {
	case ProviderGemini, ProviderLLMStudio, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid AI_PROVIDER %q", config.AI.Provider)
	}

	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	switch config.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if config.Store.RedisAddr == "" {
			return fmt.Errorf("redis address is required")
		}
	case StorePostgres, StoreSQLite:
		if config.Store.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for %s store", config.Store.Driver)
		}
	default:
		return fmt.Errorf("invalid store driver %q", config.Store.Driver)
	}

	if config.Auth.JWTSecret != "" && len(config.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit settings")
	}

	return nil
}
