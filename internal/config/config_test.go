package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_ENABLED", "DB_HOST", "DB_NAME", "REDIS_ADDR", "MQTT_ENABLED", "SESSION_TTL", "ANNOUNCEMENT_CACHE_TTL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "sipenduk", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MQTTEnabled)
	assert.Equal(t, "sipenduk/events", cfg.MQTTTopicPrefix)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.AnnouncementTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("SESSION_TTL", "3600")
	t.Setenv("ANNOUNCEMENT_CACHE_TTL", "2m")
	t.Setenv("SEED_DEFAULT_ADMIN", "false")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.True(t, cfg.MQTTEnabled)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.AnnouncementTTL)
	assert.False(t, cfg.Auth.SeedDefaultAdmin)
}

func TestInsecureJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg := Load()
	assert.Equal(t, DefaultJWTSecret, cfg.Auth.JWTSecret)
	assert.True(t, cfg.InsecureJWTSecret())

	t.Setenv("JWT_SECRET", "s3cr3t-from-vault")
	cfg = Load()
	assert.False(t, cfg.InsecureJWTSecret())
}
