package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, RenderModeCLI, cfg.Render.Mode)
	assert.Equal(t, "rendercv", cfg.Render.Binary)
	assert.Equal(t, 120*time.Second, cfg.Render.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Artifact.PreviewTTL)
	assert.Equal(t, 72*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://localhost:9000", cfg.MinIO.PublicEndpoint)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.Database.DSN(), "dbname=interviewer")
	assert.Empty(t, cfg.Intake.ParserEndpoint)
	assert.Equal(t, 3*time.Minute, cfg.Intake.ParserTimeout)
	assert.Equal(t, int64(10<<20), cfg.Intake.MaxUploadBytes)
}

func TestLoadFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("RENDER_MODE", " HTTP ")
	t.Setenv("RENDER_ENDPOINT", "http://render:8000/render")
	t.Setenv("RENDER_TIMEOUT", "90s")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_ENDPOINT", "minio.internal:9000")
	t.Setenv("PREVIEW_RATE_LIMIT", "5")
	t.Setenv("RESUME_PARSER_ENDPOINT", "http://parser:8001/extract")
	t.Setenv("CLAMD_ADDR", "tcp://clamav:3310")
	t.Setenv("RESUME_UPLOAD_MAX_BYTES", "2097152")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RenderModeHTTP, cfg.Render.Mode)
	assert.Equal(t, "http://render:8000/render", cfg.Render.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Render.Timeout)
	assert.Equal(t, "https://minio.internal:9000", cfg.MinIO.PublicEndpoint)
	assert.Equal(t, 5, cfg.Render.PreviewPerHour)
	assert.Equal(t, "http://parser:8001/extract", cfg.Intake.ParserEndpoint)
	assert.Equal(t, "tcp://clamav:3310", cfg.Intake.ClamdAddr)
	assert.Equal(t, int64(2<<20), cfg.Intake.MaxUploadBytes)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret":  {"JWT_SECRET": ""},
		"unknown render mode": {"RENDER_MODE": "docker"},
		"http without url":    {"RENDER_MODE": "http", "RENDER_ENDPOINT": ""},
		"zero timeout":        {"RENDER_TIMEOUT": "0s"},
		"empty sweep cron":    {"PREVIEW_SWEEP_CRON": " "},
		"zero upload limit":   {"RESUME_UPLOAD_MAX_BYTES": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
