package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ejwhite7/zendesk-academy/internal/clients/llm"
	"github.com/ejwhite7/zendesk-academy/internal/data/db"
	"github.com/ejwhite7/zendesk-academy/internal/learning/locks"
	"github.com/ejwhite7/zendesk-academy/internal/learning/reconciler"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/envutil"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type ZendeskConfig struct {
	BaseURL             string        `yaml:"base_url"`
	Timeout             time.Duration `yaml:"timeout"`
	PageSize            int           `yaml:"page_size"`
	PageDelay           time.Duration `yaml:"page_delay"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries"`
}

type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type Config struct {
	LogMode     string   `yaml:"log_mode"`
	HTTPAddr    string   `yaml:"http_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	AutoMigrate bool     `yaml:"auto_migrate"`

	DB      db.Config     `yaml:"db"`
	LLM     llm.Config    `yaml:"llm"`
	Zendesk ZendeskConfig `yaml:"zendesk"`
	Worker  WorkerConfig  `yaml:"worker"`

	RedisAddr         string        `yaml:"redis_addr"`
	GenerationLockTTL time.Duration `yaml:"generation_lock_ttl"`
	LessonConcurrency int           `yaml:"lesson_concurrency"`
	QuestionCount     int           `yaml:"question_count"`
	AffectedPolicy    string        `yaml:"affected_policy"`
	SyncInterval      time.Duration `yaml:"sync_interval"`

	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	Otel           observability.OtelConfig `yaml:"otel"`
}

func defaultConfig() Config {
	return Config{
		LogMode:     "development",
		HTTPAddr:    ":8080",
		AutoMigrate: true,
		DB: db.Config{
			Driver:     db.DriverPostgres,
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "academy",
			SSLMode:    "disable",
			SQLitePath: "academy.db",
		},
		LLM: llm.Config{
			Provider:   llm.ProviderAnthropic,
			Timeout:    180 * time.Second,
			MaxRetries: 2,
		},
		Zendesk: ZendeskConfig{
			Timeout:             30 * time.Second,
			PageSize:            100,
			PageDelay:           200 * time.Millisecond,
			MaxRateLimitRetries: 5,
		},
		Worker: WorkerConfig{
			Concurrency:  1,
			PollInterval: 2 * time.Second,
			MaxAttempts:  3,
			RetryDelay:   time.Minute,
		},
		GenerationLockTTL: locks.DefaultTTL,
		LessonConcurrency: 1,
		AffectedPolicy:    reconciler.PolicyBroad,
		Otel: observability.OtelConfig{
			ServiceName: "zendesk-academy",
			SampleRatio: 0.1,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by ACADEMY_CONFIG,
// then environment variables.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.GetEnv("ACADEMY_CONFIG", "", log); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(&cfg, log)
	return cfg, nil
}

func applyEnv(cfg *Config, log *logger.Logger) {
	cfg.LogMode = envutil.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.HTTPAddr = envutil.GetEnv("HTTP_ADDR", cfg.HTTPAddr, log)
	if port := envutil.GetEnv("PORT", "", log); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	if origins := envutil.GetEnv("CORS_ORIGINS", "", log); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.AutoMigrate = envutil.GetEnvAsBool("AUTO_MIGRATE", cfg.AutoMigrate, log)

	cfg.DB.Driver = envutil.GetEnv("DB_DRIVER", cfg.DB.Driver, log)
	cfg.DB.DSN = envutil.GetEnv("DATABASE_DSN", cfg.DB.DSN, log)
	cfg.DB.Host = envutil.GetEnv("POSTGRES_HOST", cfg.DB.Host, log)
	cfg.DB.Port = envutil.GetEnv("POSTGRES_PORT", cfg.DB.Port, log)
	cfg.DB.User = envutil.GetEnv("POSTGRES_USER", cfg.DB.User, log)
	cfg.DB.Password = envutil.GetEnv("POSTGRES_PASSWORD", cfg.DB.Password, log)
	cfg.DB.Name = envutil.GetEnv("POSTGRES_NAME", cfg.DB.Name, log)
	cfg.DB.SSLMode = envutil.GetEnv("POSTGRES_SSLMODE", cfg.DB.SSLMode, log)
	cfg.DB.SQLitePath = envutil.GetEnv("SQLITE_PATH", cfg.DB.SQLitePath, log)

	cfg.LLM.Provider = strings.ToLower(envutil.GetEnv("LLM_PROVIDER", cfg.LLM.Provider, log))
	switch cfg.LLM.Provider {
	case llm.ProviderOpenAI:
		cfg.LLM.APIKey = envutil.GetEnv("OPENAI_API_KEY", cfg.LLM.APIKey, log)
		cfg.LLM.Model = envutil.GetEnv("OPENAI_MODEL", cfg.LLM.Model, log)
		cfg.LLM.BaseURL = envutil.GetEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL, log)
	default:
		cfg.LLM.APIKey = envutil.GetEnv("ANTHROPIC_API_KEY", cfg.LLM.APIKey, log)
		cfg.LLM.Model = envutil.GetEnv("ANTHROPIC_MODEL", cfg.LLM.Model, log)
		cfg.LLM.BaseURL = envutil.GetEnv("ANTHROPIC_BASE_URL", cfg.LLM.BaseURL, log)
	}
	cfg.LLM.Timeout = seconds("LLM_TIMEOUT_SECONDS", cfg.LLM.Timeout, log)
	cfg.LLM.MaxRetries = envutil.GetEnvAsInt("LLM_MAX_RETRIES", cfg.LLM.MaxRetries, log)

	cfg.Zendesk.BaseURL = envutil.GetEnv("ZENDESK_BASE_URL", cfg.Zendesk.BaseURL, log)
	cfg.Zendesk.Timeout = seconds("ZENDESK_TIMEOUT_SECONDS", cfg.Zendesk.Timeout, log)
	cfg.Zendesk.PageSize = envutil.GetEnvAsInt("ZENDESK_PAGE_SIZE", cfg.Zendesk.PageSize, log)
	cfg.Zendesk.MaxRateLimitRetries = envutil.GetEnvAsInt("ZENDESK_MAX_RATE_LIMIT_RETRIES", cfg.Zendesk.MaxRateLimitRetries, log)

	cfg.Worker.Concurrency = envutil.GetEnvAsInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency, log)
	cfg.Worker.MaxAttempts = envutil.GetEnvAsInt("WORKER_MAX_ATTEMPTS", cfg.Worker.MaxAttempts, log)

	cfg.RedisAddr = envutil.GetEnv("REDIS_ADDR", cfg.RedisAddr, log)
	cfg.GenerationLockTTL = seconds("GENERATION_LOCK_TTL_SECONDS", cfg.GenerationLockTTL, log)
	cfg.LessonConcurrency = envutil.GetEnvAsInt("LESSON_CONCURRENCY", cfg.LessonConcurrency, log)
	cfg.QuestionCount = envutil.GetEnvAsInt("QUESTION_COUNT", cfg.QuestionCount, log)
	cfg.AffectedPolicy = strings.ToLower(envutil.GetEnv("AFFECTED_POLICY", cfg.AffectedPolicy, log))
	if mins := envutil.GetEnvAsInt("SYNC_INTERVAL_MINUTES", -1, log); mins >= 0 {
		cfg.SyncInterval = time.Duration(mins) * time.Minute
	}

	cfg.MetricsEnabled = envutil.GetEnvAsBool("METRICS_ENABLED", cfg.MetricsEnabled, log)
	cfg.Otel.Enabled = envutil.GetEnvAsBool("OTEL_ENABLED", cfg.Otel.Enabled, log)
	cfg.Otel.ServiceName = envutil.GetEnv("OTEL_SERVICE_NAME", cfg.Otel.ServiceName, log)
	cfg.Otel.Environment = envutil.GetEnv("OTEL_ENVIRONMENT", cfg.Otel.Environment, log)
	cfg.Otel.Endpoint = envutil.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint, log)
	cfg.Otel.Insecure = envutil.GetEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure, log)
	if headers := observability.ParseHeaders(envutil.GetEnv("OTEL_EXPORTER_OTLP_HEADERS", "", log)); headers != nil {
		cfg.Otel.Headers = headers
	}
}

func seconds(key string, def time.Duration, log *logger.Logger) time.Duration {
	n := envutil.GetEnvAsInt(key, -1, log)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
