package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"prism-task-editor/api"
	"prism-task-editor/config"
	"prism-task-editor/form"
	"prism-task-editor/notify"
	"prism-task-editor/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var tags storage.TagSource = &storage.Static{Tags: cfg.Tags}
	if cfg.StorageConnectionString != "" {
		store, err := storage.New(cfg.StorageConnectionString, cfg.TagsTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		if cfg.SeedTags {
			if err := store.Seed(ctx, cfg.Tags); err != nil {
				log.Fatalf("seed tags: %v", err)
			}
			logger.Infof("seeded %d tags into %s", len(cfg.Tags), cfg.TagsTable)
		}
		tags = store
	}

	hub := notify.NewHub()
	var toasts notify.Notifier = hub
	if cfg.RedisConnectionString != "" {
		redisOpts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()
		tags = storage.NewCache(tags, rc, cfg.TagCacheTTL)
		toasts = notify.NewRedisNotifier(rc, cfg.NotificationsChannel)
		go notify.Relay(ctx, logger, rc, cfg.NotificationsChannel, hub)
	}

	schema, err := form.NewSchema()
	if err != nil {
		log.Fatalf("schema: %v", err)
	}
	submit := form.NewSubmitHandler(notify.Multi{toasts, notify.LogNotifier{Logger: logger}}, logger)
	sessions := api.NewRegistry(schema, submit, cfg.SessionTTL, cfg.MaxSessions)
	go sessions.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.Recover())

	api.Register(e, api.Deps{Sessions: sessions, Tags: tags, Hub: hub, Schema: schema, Logger: logger})

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	logger.Infof("task editor listening on %s", cfg.ListenAddr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
