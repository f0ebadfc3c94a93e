package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/store"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required: the worker consumes record changes from the broker")
		os.Exit(1)
	}

	// A memory backend lives in the web process, so there is nothing to re-read here.
	var source store.Backend
	if cfg.DataBackend != "memory" {
		source = cli.OpenBackend(logger, cfg)
	} else {
		logger.Info("Memory backend configured, updates will be mirrored from event payloads only")
	}

	var mirror sheets.Mirror
	if cfg.GoogleSpreadsheetID != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		client, err := gsheet.New(initCtx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		}, logger.WithComponent(applog.ComponentSheets).Slog())
		if err == nil {
			err = client.EnsureHeader(initCtx)
		}
		cancel()
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror ready", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		mirror = memory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	var sourceClient store.Client
	if source != nil {
		sourceClient = source
	}
	syncWorker := worker.NewSyncWorker(mirror, sourceClient, logger.Slog())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		_ = amqpClient.Close()
		if source != nil {
			_ = source.Close()
		}
		stats := syncWorker.Stats()
		logger.Info("Worker totals", "appended", stats.Appended, "deleted", stats.Deleted, "skipped", stats.Skipped)
	})

	go func() {
		err := amqpClient.ConsumeChanges(ctx, syncWorker.HandleChange)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Change consumption failed", applog.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
