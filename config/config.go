package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Identity  IdentityConfig
	VPS       VPSConfig
	AWS       AWSConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              string
	Environment       string // "production" disables development-only fallbacks
	ReadHeaderTimeout int
	ReadTimeout       int // whole request; uploads override it with Pipeline.UploadReadTimeout
	WriteTimeout      int
	FrontendOrigin    string // single origin allowed for CORS with credentials
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/studymeta?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdentityConfig selects how bearer tokens are resolved to users.
// When URL is set the remote identity service is asked; otherwise tokens are verified locally with JWTSecret.
type IdentityConfig struct {
	URL       string
	APIKey    string
	JWTSecret string
}

// VPSConfig holds the remote storage/transcoding host connection parameters.
type VPSConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Configured reports whether both connection parameters are present.
func (c VPSConfig) Configured() bool {
	return strings.TrimSpace(c.APIURL) != "" && strings.TrimSpace(c.APIKey) != ""
}

// AWSConfig holds AWS credentials and the S3 bucket for processed videos.
// When S3 signs stream URLs only the manifest is presigned, so the bucket must serve
// segment objects (*.ts) publicly or through a CDN.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // optional S3-compatible endpoint
	VideosBucket    string
	MirrorPackages  bool // upload finished HLS packages to VideosBucket
}

// Configured reports whether an S3 bucket is usable.
func (c AWSConfig) Configured() bool {
	return c.Region != "" && c.VideosBucket != ""
}

// PipelineConfig holds upload, transcode and playback settings.
type PipelineConfig struct {
	UploadDir              string
	OutputRoot             string
	PublicStreamBaseURL    string // e.g. https://studymeta.in/videos
	FFprobePath            string
	FFmpegPath             string
	SegmentSeconds         int
	MaxUploadBytes         int64
	UploadReadTimeout      time.Duration // read deadline for one upload body
	TranscodeTimeout       time.Duration
	MaxConcurrentTranscode int
	StreamURLTTL           time.Duration
	AllowUnsignedFallback  bool // development only: return raw video_path when no signer is configured
}

// RateLimitConfig holds fixed-window limits.
type RateLimitConfig struct {
	GeneralLimit  int
	GeneralWindow time.Duration
	UploadLimit   int
	UploadWindow  time.Duration
}

// WebhookConfig holds the shared secret expected in X-API-Key on processing callbacks.
type WebhookConfig struct {
	Secret string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// IsProduction reports whether the server runs in production.
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	vpsKey := getEnv("VPS_API_KEY", "")
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "3000"),
			Environment:    getEnv("APP_ENV", "development"),
			ReadTimeout:    getEnvInt("READ_TIMEOUT_SEC", 60),
			WriteTimeout:   getEnvInt("WRITE_TIMEOUT_SEC", 0),
			FrontendOrigin: getEnv("FRONTEND_ORIGIN", "https://studymeta.in"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			URL:       strings.TrimRight(getEnv("IDENTITY_URL", ""), "/"),
			APIKey:    getEnv("IDENTITY_API_KEY", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		VPS: VPSConfig{
			APIURL:  strings.TrimRight(getEnv("VPS_API_URL", ""), "/"),
			APIKey:  vpsKey,
			Timeout: getEnvDuration("VPS_TIMEOUT", 15*time.Second),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			VideosBucket:    getEnv("AWS_S3_VIDEOS_BUCKET", ""),
			MirrorPackages:  getEnvBool("AWS_S3_MIRROR_PACKAGES", false),
		},
		Pipeline: PipelineConfig{
			UploadDir:              getEnv("UPLOAD_DIR", "/tmp/uploads"),
			OutputRoot:             getEnv("VIDEO_OUTPUT_ROOT", "/srv/course_videos"),
			PublicStreamBaseURL:    strings.TrimRight(getEnv("PUBLIC_STREAM_BASE_URL", "https://studymeta.in/videos"), "/"),
			FFprobePath:            getEnv("FFPROBE_PATH", "ffprobe"),
			FFmpegPath:             getEnv("FFMPEG_PATH", "ffmpeg"),
			SegmentSeconds:         getEnvInt("HLS_SEGMENT_SECONDS", 10),
			MaxUploadBytes:         getEnvInt64("MAX_UPLOAD_BYTES", 2<<30),
			TranscodeTimeout:       getEnvDuration("TRANSCODE_TIMEOUT", 30*time.Minute),
			MaxConcurrentTranscode: getEnvInt("MAX_CONCURRENT_TRANSCODES", 2),
			StreamURLTTL:           getEnvDuration("STREAM_URL_TTL", 5*time.Minute),
			AllowUnsignedFallback:  getEnvBool("ALLOW_UNSIGNED_STREAM_FALLBACK", false),
		},
		RateLimit: RateLimitConfig{
			GeneralLimit:  getEnvInt("RATE_LIMIT_GENERAL", 100),
			GeneralWindow: getEnvDuration("RATE_LIMIT_GENERAL_WINDOW", 15*time.Minute),
			UploadLimit:   getEnvInt("RATE_LIMIT_UPLOADS", 10),
			UploadWindow:  getEnvDuration("RATE_LIMIT_UPLOADS_WINDOW", time.Hour),
		},
		Webhook: WebhookConfig{
			// The processing host signs callbacks with the same key it accepts requests with.
			Secret: getEnv("VIDEO_WEBHOOK_SECRET", vpsKey),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	if c.Identity.URL == "" && c.Identity.JWTSecret == "" {
		return errors.New("config: IDENTITY_URL or JWT_SECRET is required")
	}
	if c.Pipeline.SegmentSeconds <= 0 {
		return errors.New("config: HLS_SEGMENT_SECONDS must be positive")
	}
	if c.Pipeline.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.AWS.Configured() && !c.VPS.Configured() && !c.AWS.MirrorPackages {
		return errors.New("config: S3 signs stream URLs when VPS_API_URL is unset; set AWS_S3_MIRROR_PACKAGES=true so processed uploads reach the bucket")
	}
	if c.Server.IsProduction() {
		if c.Pipeline.AllowUnsignedFallback {
			return errors.New("config: ALLOW_UNSIGNED_STREAM_FALLBACK must be off in production")
		}
		if c.Webhook.Secret == "" {
			return errors.New("config: in production VIDEO_WEBHOOK_SECRET or VPS_API_KEY is required")
		}
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5m") or bare seconds ("300").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
