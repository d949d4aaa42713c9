package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"qrdine/internal/app/registry"
	"qrdine/internal/app/server"
	"qrdine/internal/app/server/handlers"
	"qrdine/internal/app/server/ws"
	"qrdine/internal/app/worker"
	"qrdine/internal/config"
	"qrdine/internal/core/services"
	"qrdine/internal/platform/logger"
	"qrdine/internal/platform/telemetry"
	"qrdine/internal/plugins/postgres"
	redisPlugin "qrdine/internal/plugins/redis"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	if cfg.Auth.SecretToken == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	taxRate, err := decimal.NewFromString(cfg.Pricing.TaxRate)
	if err != nil {
		log.Error("invalid TAX_RATE", "value", cfg.Pricing.TaxRate, "err", err)
		os.Exit(1)
	}

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	orderRepo := postgres.NewOrderRepo(pdb)
	txManager := postgres.NewTxManager(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	cmdQueue := redisPlugin.NewRedisCommandQueue(log, rdb, redisPlugin.QueueOptions{
		MaxLen:       cfg.Worker.StreamMaxLen,
		Consumer:     cfg.Worker.ConsumerName,
		ClaimMinIdle: cfg.Worker.ClaimMinIdle,
		Block:        cfg.Worker.ReadBlock,
	})

	// Core Services
	hub := registry.NewRegistry()
	dispatcher := services.NewDispatcher(log, hub)
	orderSvc := services.NewOrderService(log, orderRepo, txManager, dispatcher, taxRate)
	noticeSvc := services.NewNotificationService(log, dispatcher)
	sessSvc := services.NewSessionService(log, hub, presStore, services.SessionConfig{
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
		PresenceTTL:       cfg.Session.PresenceTTL,
	})
	tokenSvc := services.NewTokenService(cfg.Auth.SecretToken, cfg.Auth.TokenTTL)

	wrkr := worker.NewOrderCommandWorker(log, cmdQueue, orderSvc, cfg.Worker.CommandStream, cfg.Worker.CommandGroup)

	// Server
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Addr, tokenSvc, server.Handlers{
		WS: handlers.NewWSHandler(sessSvc, ws.Options{
			WriteTimeout: cfg.Session.WriteTimeout,
			ReadLimit:    cfg.Session.ReadLimit,
			SendBuffer:   cfg.Session.SendBuffer,
		}, cfg.Session.AllowedOrigins),
		Orders:        handlers.NewOrderHandler(orderSvc),
		Notifications: handlers.NewNotificationHandler(noticeSvc),
		Presence:      handlers.NewPresenceHandler(hub, presStore, cfg.Session.PresenceTTL),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return wrkr.Run(gctx) })
	g.Go(func() error { return srv.Start(gctx) })
	if err := g.Wait(); err != nil {
		log.Error("application stopped with error", "err", err)
		return
	}
	log.Info("application stopped")
}
