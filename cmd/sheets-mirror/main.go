package main

import (
	"context"
	"errors"
	"os"
	"time"

	"trackme/internal/amqp"
	"trackme/internal/cli"
	applog "trackme/internal/log"
	"trackme/internal/sheets"
	gsheet "trackme/internal/sheets/google"
	"trackme/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentSheets)
	logger.Info("Starting sheets-mirror")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	// The mirror only reads the store, so it opens it without publishing.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	backendResult := cli.MustOpenStore(startCtx, logger, &storeCfg)

	sheetsClient, err := gsheet.New(startCtx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	mirror := sheets.NewMirror(sheetsClient, cfg.GoogleSubscriptionsSheet, cfg.GoogleTransactionsSheet, logger)
	mirrorWorker := worker.NewMirrorWorker(backendResult.Store, mirror, sheetsClient, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
		}
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Store cleanup error", applog.FieldError, err)
		}
	})

	// Pick up anything written while the mirror was down.
	logger.Info("Performing startup backfill...")
	res, err := mirrorWorker.Backfill(ctx)
	if err != nil {
		logger.Error("Startup backfill failed", applog.FieldError, err)
	} else {
		logger.Info("Startup backfill finished", "appended", res.Appended, "skipped", res.Skipped, "errors", res.Errors)
	}

	if err := amqpClient.ConsumeRecordChanges(ctx, mirrorWorker.HandleRecordChanged); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Sheets mirror stopped")
}
