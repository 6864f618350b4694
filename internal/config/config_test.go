package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "telehealth"},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Video: VideoConfig{DailyAPIKey: "key"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV is required")
	assert.Contains(t, err.Error(), "DB_HOST is required")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_SSLMODE")
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	require.NoError(t, c.Validate())

	assert.Equal(t, "disable", c.DB.SSLMode)
	assert.Equal(t, ProviderDaily, c.Video.Provider)
	assert.Equal(t, "https://api.daily.co/v1", c.Video.DailyBaseURL)
	assert.Equal(t, time.Hour, c.Video.RoomTTL)
	assert.Equal(t, 2, c.Video.MaxParticipants)
	assert.Equal(t, time.Minute, c.Reaper.Interval)
	assert.False(t, c.RedisEnabled())
}

func TestValidate_LiveKitNeedsCredentials(t *testing.T) {
	c := validLocal()
	c.Video = VideoConfig{Provider: ProviderLiveKit, LiveKitHost: "https://lk.example"}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIVEKIT_API_KEY")
}

func TestValidate_UnknownProvider(t *testing.T) {
	c := validLocal()
	c.Video.Provider = "zoom"
	require.Error(t, c.Validate())
}

func TestLoad_FileOverriddenByEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
app:
  env: dev
  port: 9000
db:
  host: db.internal
  port: 5432
  user: calls
  name: telehealth
auth:
  jwt_secret: from-file
video:
  provider: daily
  daily_api_key: file-key
  room_ttl: 30m
http:
  cors_origins: ["https://a.example"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("APP_PORT", "8081")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, 8081, c.App.Port)
	assert.Equal(t, "db.internal", c.DB.Host)
	assert.Equal(t, "from-file", c.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, c.Video.RoomTTL)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, c.HTTP.CORSOrigins)
}

func TestLoad_ReportsParseErrors(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("VIDEO_ROOM_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_PORT must be an integer")
	assert.Contains(t, err.Error(), "VIDEO_ROOM_TTL must be a duration")
}
