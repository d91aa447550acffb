package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sipenduk/common/database"
	"sipenduk/common/logger"
	"sipenduk/common/mqtt"
	"sipenduk/common/redis"
	"sipenduk/internal/config"
	httpapi "sipenduk/internal/http"
	"sipenduk/internal/repository"
	"sipenduk/internal/service"
	"sipenduk/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "sipenduk-data")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 单一物理存储：Postgres 可用时使用 Postgres，否则退回内存存储
	var (
		db *sql.DB
		st repository.Store
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			n, err := repository.Migrate(ctx, db, repository.Schema())
			if err != nil {
				log.Fatal("Schema migration failed", zap.String("db", cfg.Database.Redacted()), zap.Error(err))
			}
			log.Info("DB enabled for sipenduk-data", zap.String("db", cfg.Database.Redacted()), zap.Int("statements", n))
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory store",
				zap.String("db", cfg.Database.Redacted()), zap.Error(err))
		}
	}
	if db != nil {
		st = repository.NewPostgresStore(db)
	} else {
		st = repository.NewMemoryStore()
	}

	// Redis 只做公告列表缓存，不可用时直接读存储
	var (
		kv          store.KV
		redisClient *redis.Client
	)
	if cfg.RedisEnabled {
		if c, err := redis.Open(ctx, &cfg.Redis); err == nil {
			redisClient = c
			kv = store.NewRedisKV(c)
		} else {
			log.Warn("Redis unavailable, announcement cache disabled", zap.Error(err))
		}
	}

	var publisher service.EventPublisher = service.NopPublisher{}
	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		if c, err := mqtt.NewClient(&cfg.MQTT, log); err == nil {
			mqttClient = c
			publisher = service.NewMQTTEventPublisher(c, cfg.MQTTTopicPrefix, log)
			log.Info("Publishing domain events", zap.String("broker", cfg.MQTT.Broker), zap.String("prefix", cfg.MQTTTopicPrefix))
		} else {
			log.Warn("MQTT unavailable, domain events disabled", zap.Error(err))
		}
	}

	if cfg.InsecureJWTSecret() {
		log.Warn("JWT_SECRET not set, signing sessions with the built-in development key")
	}
	sessions := service.NewJWTSessionManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	authService := service.NewAuthService(st, sessions, cfg.Auth.DefaultAdminUser, log)
	if cfg.Auth.SeedDefaultAdmin {
		if _, err := authService.EnsureDefaultAdmin(ctx); err != nil {
			log.Error("Failed to seed default admin", zap.Error(err))
		}
	}

	router := httpapi.NewRouter(sessions, log)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authService, log))
	router.RegisterUserRoutes(httpapi.NewUserHandler(authService, log))
	router.RegisterResidentRoutes(httpapi.NewResidentHandler(service.NewResidentService(st, publisher, log), log))
	router.RegisterFamilyCardRoutes(httpapi.NewFamilyCardHandler(service.NewFamilyCardService(st, publisher, log), log))
	router.RegisterVitalEventRoutes(httpapi.NewVitalEventHandler(
		service.NewBirthEventService(st, publisher, log),
		service.NewDeathEventService(st, publisher, log),
		service.NewArrivalEventService(st, publisher, log),
		service.NewDepartureEventService(st, publisher, log),
		log,
	))
	router.RegisterLetterRoutes(httpapi.NewLetterHandler(service.NewLetterService(st, publisher, log), log))
	router.RegisterAnnouncementRoutes(httpapi.NewAnnouncementHandler(service.NewAnnouncementService(st, kv, cfg.Cache.AnnouncementTTL, log), log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", zap.Error(err))
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redis.Close(redisClient)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = database.Close(db)
}
