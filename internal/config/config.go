package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Render   RenderConfig   `mapstructure:"render"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
	// InternalSecret 为空时内部路由不注册。
	InternalSecret string `mapstructure:"internal_secret"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// Render modes.
const (
	RenderModeCLI  = "cli"
	RenderModeHTTP = "http"
)

// RenderConfig 描述外部排版流水线。
type RenderConfig struct {
	Mode           string        `mapstructure:"mode"`
	Binary         string        `mapstructure:"binary"`
	Endpoint       string        `mapstructure:"endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
	WorkDir        string        `mapstructure:"work_dir"`
	PreviewPerHour int           `mapstructure:"preview_per_hour"`
}

// ArtifactConfig 控制预览与发布产物链接的有效期。
type ArtifactConfig struct {
	PreviewTTL      time.Duration `mapstructure:"preview_ttl"`
	PublishedURLTTL time.Duration `mapstructure:"published_url_ttl"`
}

// IntakeConfig 控制简历 PDF 导入。ParserEndpoint 为空时不开放上传；ClamdAddr 为空时不扫描。
type IntakeConfig struct {
	ParserEndpoint string        `mapstructure:"parser_endpoint"`
	ParserTimeout  time.Duration `mapstructure:"parser_timeout"`
	ClamdAddr      string        `mapstructure:"clamd_addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// AuthConfig contains token signing settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// WorkerConfig 控制后台任务处理。
type WorkerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	SweepCron   string `mapstructure:"sweep_cron"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `mapstructure:"format"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Render.Mode = strings.ToLower(strings.TrimSpace(cfg.Render.Mode))
	if cfg.MinIO.PublicEndpoint == "" {
		scheme := "http"
		if cfg.MinIO.UseSSL {
			scheme = "https"
		}
		cfg.MinIO.PublicEndpoint = scheme + "://" + cfg.MinIO.Endpoint
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.internal_secret", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "interviewer")
	v.SetDefault("database.user", "interviewer")
	v.SetDefault("database.password", "interviewer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resumes")
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("render.mode", RenderModeCLI)
	v.SetDefault("render.binary", "rendercv")
	v.SetDefault("render.endpoint", "")
	v.SetDefault("render.timeout", 120*time.Second)
	v.SetDefault("render.work_dir", "")
	v.SetDefault("render.preview_per_hour", 30)
	v.SetDefault("artifact.preview_ttl", 24*time.Hour)
	v.SetDefault("artifact.published_url_ttl", 24*time.Hour)
	v.SetDefault("intake.parser_endpoint", "")
	v.SetDefault("intake.parser_timeout", 3*time.Minute)
	v.SetDefault("intake.clamd_addr", "")
	v.SetDefault("intake.max_upload_bytes", 10<<20)
	v.SetDefault("auth.token_ttl", 72*time.Hour)
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.sweep_cron", "@every 1h")
	v.SetDefault("worker.metrics_addr", ":9091")
	v.SetDefault("log.format", "text")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.internal_secret":        "INTERNAL_API_SECRET",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.public_endpoint":      "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.region":               "MINIO_REGION",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"render.mode":                "RENDER_MODE",
		"render.binary":              "RENDERCV_BIN",
		"render.endpoint":            "RENDER_ENDPOINT",
		"render.timeout":             "RENDER_TIMEOUT",
		"render.work_dir":            "RENDER_WORK_DIR",
		"render.preview_per_hour":    "PREVIEW_RATE_LIMIT",
		"artifact.preview_ttl":       "PREVIEW_TTL",
		"artifact.published_url_ttl": "PUBLISHED_URL_TTL",
		"intake.parser_endpoint":     "RESUME_PARSER_ENDPOINT",
		"intake.parser_timeout":      "RESUME_PARSER_TIMEOUT",
		"intake.clamd_addr":          "CLAMD_ADDR",
		"intake.max_upload_bytes":    "RESUME_UPLOAD_MAX_BYTES",
		"auth.jwt_secret":            "JWT_SECRET",
		"auth.token_ttl":             "JWT_TOKEN_TTL",
		"worker.concurrency":         "WORKER_CONCURRENCY",
		"worker.sweep_cron":          "PREVIEW_SWEEP_CRON",
		"worker.metrics_addr":        "WORKER_METRICS_ADDR",
		"log.format":                 "LOG_FORMAT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	switch cfg.Render.Mode {
	case RenderModeCLI:
		if cfg.Render.Binary == "" {
			return errors.New("render binary is required in cli mode")
		}
	case RenderModeHTTP:
		if cfg.Render.Endpoint == "" {
			return errors.New("render endpoint is required in http mode")
		}
	default:
		return fmt.Errorf("unknown render mode %q", cfg.Render.Mode)
	}
	if cfg.Render.Timeout <= 0 {
		return errors.New("render timeout must be positive")
	}
	if cfg.Render.PreviewPerHour < 0 {
		return errors.New("preview rate limit must not be negative")
	}
	if cfg.Artifact.PreviewTTL <= 0 || cfg.Artifact.PublishedURLTTL <= 0 {
		return errors.New("artifact ttl must be positive")
	}
	if cfg.Intake.ParserTimeout <= 0 {
		return errors.New("resume parser timeout must be positive")
	}
	if cfg.Intake.MaxUploadBytes <= 0 {
		return errors.New("resume upload limit must be positive")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if strings.TrimSpace(cfg.Worker.SweepCron) == "" {
		return errors.New("worker sweep cron is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}
