package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/adapters"
	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/realtime"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(applog.ComponentRecurring)
	logger.Info("Starting recurring-worker", "interval", cfg.RecurringInterval)

	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend configured, generated expenses are not visible to the web process")
	}
	backend := cli.OpenBackend(logger, cfg)

	// Generated expenses are announced like web writes: AMQP feeds the sheets
	// mirror, Redis tells web instances to refresh caches and browsers.
	var notifiers []core.Notifier
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(applog.ComponentAMQP).Slog())
		if err != nil {
			logger.Warn("AMQP unavailable, generated expenses will not reach the sheets mirror", applog.FieldError, err)
			amqpClient = nil
		} else {
			notifiers = append(notifiers, amqpClient)
		}
	}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		notifiers = append(notifiers, realtime.NewRedisBridge(redisClient, realtime.DefaultChannel, "recurring-worker", nil,
			logger.WithComponent(applog.ComponentRealtime).Slog()))
	}

	client := adapters.NewNotifyingClient(backend, adapters.NewFanout(logger.Slog(), notifiers...), "recurring-worker")
	processor := services.NewRecurringProcessor(backend, client, logger.Slog())
	scheduler := services.NewScheduler(processor.ProcessDue, services.SchedulerConfig{
		Name:     "recurring-payments",
		Interval: cfg.RecurringInterval,
	}, logger.Slog())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler stop", applog.FieldError, err)
		}
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

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", applog.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
}
