package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/adapters"
	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/realtime"
	"fintrack/internal/services"
	"fintrack/internal/taxonomy"
)

func main() {
	cfg, logger := cli.Bootstrap()

	instanceID := cfg.Instance()
	logger.Info("Starting fintrack", "port", cfg.Port, "backend", cfg.DataBackend, "instance_id", instanceID)

	backend := cli.OpenBackend(logger, cfg)

	tx, err := taxonomy.New(cfg.CategoriesFile, cfg.SourcesFile)
	if err != nil {
		logger.Error("Failed to load category lists", applog.FieldError, err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	var recordCache cache.Cache[[]core.Record]
	if redisClient != nil {
		recordCache = cache.NewRedisCache[[]core.Record](redisClient, "fintrack:records:", cfg.CacheTTL,
			logger.WithComponent(applog.ComponentCache).Slog())
		logger.Info("Using shared Redis cache", "addr", cfg.RedisAddr)
	} else {
		lru := cache.NewLRUCache[[]core.Record](cfg.CacheSize, cfg.CacheTTL)
		cacheManager.Register(lru)
		recordCache = lru
	}
	cacheManager.StartCleanup(time.Minute)

	hub := realtime.NewHub(logger.WithComponent(applog.ComponentRealtime).Slog())

	// The record service invalidates its own cache, but it is built on top of
	// the notifying client, so it is bound late.
	var records *services.RecordService
	invalidate := adapters.NotifierFunc(func(ctx context.Context, ev core.ChangeEvent) error {
		return records.Notify(ctx, ev)
	})
	local := adapters.NewFanout(logger.Slog(), invalidate, hub)

	notifiers := []core.Notifier{local}
	var bridge *realtime.RedisBridge
	if redisClient != nil {
		bridge = realtime.NewRedisBridge(redisClient, realtime.DefaultChannel, instanceID, local,
			logger.WithComponent(applog.ComponentRealtime).Slog())
		notifiers = append(notifiers, bridge)
	}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(applog.ComponentAMQP).Slog())
		if err != nil {
			logger.Warn("AMQP unavailable, the sheets mirror will not receive changes", applog.FieldError, err)
			amqpClient = nil
		} else {
			notifiers = append(notifiers, amqpClient)
			logger.Info("Publishing record changes", "exchange", cfg.AMQPExchange)
		}
	}

	client := adapters.NewNotifyingClient(backend, adapters.NewFanout(logger.Slog(), notifiers...), instanceID)
	records = services.NewRecordService(client, recordCache, tx, logger.WithComponent(applog.ComponentRecords).Slog())

	authService := auth.NewService(backend, backend,
		auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		logger.WithComponent(applog.ComponentAuth).Slog())

	checks := map[string]apphttp.Check{
		"store": backend.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:            records,
		Budgets:            services.NewBudgetService(records),
		Analytics:          services.NewAnalyticsService(records),
		Recurring:          services.NewRecurringService(backend, records, logger.WithComponent(applog.ComponentRecurring).Slog()),
		Auth:               authService,
		Hub:                hub,
		Logger:             logger,
		Checks:             checks,
		CookieSecure:       cfg.CookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if err := backend.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldError, err)
		}
	})

	go hub.Run(ctx)
	if bridge != nil {
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("Realtime bridge stopped", applog.FieldError, err)
			}
		}()
	}
	go func() {
		if err := taxonomy.Watch(ctx, tx, logger.WithComponent(applog.ComponentTaxonomy).Slog()); err != nil {
			logger.Warn("Category list watcher stopped", applog.FieldError, err)
		}
	}()

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
