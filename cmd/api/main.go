package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telehealth-calls/internal/appointments"
	"telehealth-calls/internal/audit"
	"telehealth-calls/internal/auth"
	"telehealth-calls/internal/calls"
	"telehealth-calls/internal/config"
	"telehealth-calls/internal/events"
	"telehealth-calls/internal/httpapi"
	"telehealth-calls/internal/mw"
	"telehealth-calls/internal/reaper"
	"telehealth-calls/pkg/logger"
	"telehealth-calls/pkg/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.EnsureSchema {
		if err := bootstrapSchema(rootCtx, db); err != nil {
			log.Error("schema bootstrap failed", "err", err)
			os.Exit(1)
		}
	}

	provider, err := buildProvider(cfg.Video)
	if err != nil {
		log.Error("video provider init failed", "err", err)
		os.Exit(1)
	}

	opts := calls.Options{
		RoomTTL:         cfg.Video.RoomTTL,
		MaxParticipants: cfg.Video.MaxParticipants,
		CreateTimeout:   cfg.Video.CreateTimeout,
		Auditor:         audit.NewService(audit.NewPostgresRepo(db)),
	}

	var bus events.Bus = events.NewMemoryBus()
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		opts.Guard = calls.NewRedisGuard(rdb, 0, log)
		bus = events.NewRedisBus(rdb, log)
	} else {
		log.Warn("redis not configured; call events stay in-process and creates rely on the database index")
	}
	opts.Publisher = bus

	directory := appointments.NewCachedDirectory(appointments.NewPostgresDirectory(db), cfg.Directory.CacheTTL)
	svc := calls.NewService(calls.NewPostgresStore(db), directory, provider, opts)

	limiter := mw.NewKeyedRateLimiter(rate.Limit(cfg.HTTP.RateLimitRPS), cfg.HTTP.RateLimitBurst)

	var expirer reaper.Expirer = svc
	if cfg.Reaper.Disabled {
		log.Info("stale call reaper disabled")
		expirer = nil
	}
	rp := reaper.New(expirer, cfg.Reaper.Interval, cfg.Reaper.BatchSize, log)
	rp.Every(5*time.Minute, func() { limiter.Sweep() })
	if err := rp.Start(); err != nil {
		log.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer rp.Stop()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/api/appointments/:id/call-status"))

	streamsDone := make(chan struct{})
	registerRoutes(r, routeDeps{
		Ping:     func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
		Tokens:   authManager,
		Handlers: httpapi.Handlers{Calls: svc, Events: bus, Shutdown: streamsDone},
		Limit:    mw.RateLimiter(limiter),
	})

	srv := newHTTPServer(cfg.HTTPAddr(), corsHandler(cfg, r), streamsDone)

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "video_provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
