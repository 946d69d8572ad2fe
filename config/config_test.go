package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("VPS_API_KEY", "vps-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pipeline.SegmentSeconds)
	assert.Equal(t, int64(2<<30), cfg.Pipeline.MaxUploadBytes)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.StreamURLTTL)
	assert.Equal(t, 10, cfg.RateLimit.UploadLimit)
	assert.Equal(t, time.Hour, cfg.RateLimit.UploadWindow)
	assert.Equal(t, "vps-key", cfg.Webhook.Secret)
	assert.False(t, cfg.VPS.Configured())
}

func TestLoadRequiresIdentity(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("IDENTITY_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsUnsignedFallbackInProduction(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Environment: "production"},
		Identity: IdentityConfig{JWTSecret: "s"},
		Pipeline: PipelineConfig{SegmentSeconds: 10, MaxUploadBytes: 1, AllowUnsignedFallback: true},
		Webhook:  WebhookConfig{Secret: "k"},
	}
	require.Error(t, cfg.Validate())

	cfg.Pipeline.AllowUnsignedFallback = false
	require.NoError(t, cfg.Validate())
}

func TestGetEnvDurationAcceptsSeconds(t *testing.T) {
	t.Setenv("STREAM_URL_TTL", "300")
	assert.Equal(t, 5*time.Minute, getEnvDuration("STREAM_URL_TTL", time.Second))

	t.Setenv("STREAM_URL_TTL", "4h")
	assert.Equal(t, 4*time.Hour, getEnvDuration("STREAM_URL_TTL", time.Second))
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://x", Host: "h"}
	assert.Equal(t, "postgres://x", c.DSN())

	c.URL = ""
	c.User, c.Password, c.Port, c.DBName, c.SSLMode = "u", "p", "5432", "db", "disable"
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", c.DSN())
}

func TestValidateRequiresMirrorForS3Signing(t *testing.T) {
	cfg := &Config{
		Identity: IdentityConfig{JWTSecret: "s"},
		Pipeline: PipelineConfig{SegmentSeconds: 10, MaxUploadBytes: 1},
		AWS:      AWSConfig{Region: "ap-south-1", VideosBucket: "course-videos"},
	}
	require.Error(t, cfg.Validate())

	cfg.AWS.MirrorPackages = true
	require.NoError(t, cfg.Validate())

	cfg.AWS.MirrorPackages = false
	cfg.VPS = VPSConfig{APIURL: "https://vps.example", APIKey: "k"}
	require.NoError(t, cfg.Validate())
}

func TestLoadUploadTimeouts(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("UPLOAD_READ_TIMEOUT", "3h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, cfg.Pipeline.UploadReadTimeout)
	assert.Equal(t, 10, cfg.Server.ReadHeaderTimeout)
}
