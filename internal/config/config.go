// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AuthConfig holds the identity provider settings. Tokens are HS256 JWTs
// signed with the project's JWT secret; `sub` is the user id.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"`
	Issuer    string `yaml:"issuer"`
}

type AIConfig struct {
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	DefaultProvider string        `yaml:"default_provider"` // openai | gemini
	CourseModel     string        `yaml:"course_model"`
	LessonModel     string        `yaml:"lesson_model"`
	QuizModel       string        `yaml:"quiz_model"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`
	// PlanTiers maps PayPal plan ids to tiers (free|basic|pro).
	PlanTiers map[string]string `yaml:"plan_tiers"`
}

type QuotaConfig struct {
	SweepInterval  time.Duration `yaml:"sweep_interval"` // 0 disables the reset sweep
	SweepBatchSize int           `yaml:"sweep_batch_size"`
	SweepWorkers   int           `yaml:"sweep_workers"`
}

type RateLimitConfig struct {
	GenerationsPerWindow int           `yaml:"generations_per_window"` // 0 disables
	Window               time.Duration `yaml:"window"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	AI        AIConfig        `yaml:"ai"`
	PayPal    PayPalConfig    `yaml:"paypal"`
	Quota     QuotaConfig     `yaml:"quota"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes YAML, applies env overrides and defaults, then validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if !dev && cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey == "" {
		return nil, errors.New("ai.openai_key or ai.gemini_key is required")
	}
	for plan, tier := range cfg.PayPal.PlanTiers {
		switch strings.ToLower(tier) {
		case "free", "basic", "pro":
		default:
			return nil, fmt.Errorf("paypal.plan_tiers[%s]: unknown tier %q", plan, tier)
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Auth.JWTSecret, "SUPABASE_JWT_SECRET")
	override(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	override(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	override(&cfg.PayPal.ClientID, "PAYPAL_CLIENT_ID")
	override(&cfg.PayPal.ClientSecret, "PAYPAL_CLIENT_SECRET")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 2 * time.Minute
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "authenticated"
	}

	if cfg.AI.DefaultProvider == "" {
		if cfg.AI.OpenAIKey == "" && cfg.AI.GeminiKey != "" {
			cfg.AI.DefaultProvider = "gemini"
		} else {
			cfg.AI.DefaultProvider = "openai"
		}
	}
	if cfg.AI.CourseModel == "" {
		cfg.AI.CourseModel = "gpt-4o"
	}
	if cfg.AI.LessonModel == "" {
		cfg.AI.LessonModel = "gpt-4o-mini"
	}
	if cfg.AI.QuizModel == "" {
		cfg.AI.QuizModel = "gpt-4o-mini"
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 4096
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 90 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.PayPal.BaseURL == "" {
		cfg.PayPal.BaseURL = "https://api-m.paypal.com"
	}

	if cfg.Quota.SweepBatchSize <= 0 {
		cfg.Quota.SweepBatchSize = 200
	}
	if cfg.Quota.SweepWorkers <= 0 {
		cfg.Quota.SweepWorkers = 4
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
