package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "sipenduk/common/config"

	"github.com/joho/godotenv"
)

// Config sipenduk-data（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	RedisEnabled bool
	Redis        commoncfg.RedisConfig

	MQTTEnabled     bool
	MQTT            commoncfg.MQTTConfig
	MQTTTopicPrefix string

	Log struct {
		Level  string
		Format string
	}

	Auth struct {
		JWTSecret        string
		SessionTTL       time.Duration
		DefaultAdminUser string
		SeedDefaultAdmin bool
	}

	Cache struct {
		AnnouncementTTL time.Duration
	}
}

// DefaultJWTSecret 仅供本地开发；生产环境必须通过 JWT_SECRET 覆盖
const DefaultJWTSecret = "change-me-in-production"

// Load 从环境变量加载配置；存在 .env 文件时先加载（不覆盖已存在的环境变量）
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, the server falls back to the memory store.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "sipenduk",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	// MQTT 仅用于发布领域事件，默认禁用
	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "sipenduk-data",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTTTopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "sipenduk/events")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", DefaultJWTSecret)
	cfg.Auth.SessionTTL = parseDuration(getEnv("SESSION_TTL", "12h"), 12*time.Hour)
	cfg.Auth.DefaultAdminUser = getEnv("DEFAULT_ADMIN_USERNAME", "admin")
	cfg.Auth.SeedDefaultAdmin = getEnv("SEED_DEFAULT_ADMIN", "true") != "false"

	cfg.Cache.AnnouncementTTL = parseDuration(getEnv("ANNOUNCEMENT_CACHE_TTL", "30s"), 30*time.Second)

	return cfg
}

// InsecureJWTSecret 仍在使用默认签名密钥时为 true
func (c *Config) InsecureJWTSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	// 纯数字按秒处理
	if secs := parseInt(s, -1); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
