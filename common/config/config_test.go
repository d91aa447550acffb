package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.desa.local")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "sipenduk")
	t.Setenv("DB_PASSWORD", "rahasia")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", SSLMode: "disable", MaxConns: 10}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, "db.desa.local", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "sipenduk", cfg.Database)
	assert.Equal(t, 10, cfg.MaxConns, "invalid numbers keep the previous value")
	assert.Equal(t,
		"host=db.desa.local port=6543 user=postgres password=rahasia dbname=sipenduk sslmode=disable",
		cfg.GetDSN())
	assert.Equal(t, "postgres@db.desa.local:6543/sipenduk", cfg.Redacted())
}

func TestDatabaseConfig_URLTakesPrecedence(t *testing.T) {
	t.Setenv("DB_URL", "postgres://app:rahasia@db:5432/sipenduk?sslmode=disable")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, "postgres://app:rahasia@db:5432/sipenduk?sslmode=disable", cfg.GetDSN())
	assert.NotContains(t, cfg.Redacted(), "rahasia")
}

func TestRedisAndMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_DIAL_TIMEOUT", "750ms")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "7")

	var r RedisConfig
	r.LoadFromEnv("REDIS")
	assert.Equal(t, "cache:6380", r.Addr)
	assert.Equal(t, 2, r.DB)
	assert.Equal(t, 750*time.Millisecond, r.DialTimeout)

	m := MQTTConfig{QoS: 1}
	m.LoadFromEnv("MQTT")
	assert.Equal(t, "tcp://broker:1883", m.Broker)
	assert.Equal(t, byte(1), m.QoS, "qos outside 0..2 is ignored")
}
