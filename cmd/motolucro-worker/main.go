package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"motolucro/internal/amqp"
	"motolucro/internal/cli"
	"motolucro/internal/config"
	applog "motolucro/internal/log"
	gsheet "motolucro/internal/sheets/google"
	"motolucro/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	backfill := flag.Bool("backfill", false, "write a snapshot row for every stored transaction, then exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting motolucro-worker", "backfill", *backfill)

	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets disabled - GOOGLE_SPREADSHEET_ID is required by the export worker")
		os.Exit(1)
	}
	journal, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Location:        cfg.Location(),
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	if err := journal.EnsureHeader(context.Background()); err != nil {
		// not fatal: appends still work on a sheet without a header
		logger.Warn("Failed to write journal header", applog.FieldError, err)
	}
	logger.Info("Google Sheets journal ready", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	exporter := worker.NewExportWorker(journal, cfg.ExportPrefetch, logger)

	if *backfill {
		runBackfill(logger, exporter, cfg)
		return
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP disabled - AMQP_URL is required to consume transaction events")
		os.Exit(1)
	}
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	amqpClient.WithLogger(logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exporter.Run(gctx, amqpClient)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st := exporter.Stats()
				logger.Info("Export worker stats", "processed", st.Processed, "failed", st.Failed)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Export worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// runBackfill seeds the journal from the configured store and exits.
func runBackfill(logger *applog.Logger, exporter *worker.ExportWorker, cfg *config.Config) {
	ctx, _ := cli.GracefulShutdown(logger, 10*time.Second, nil)
	store := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close storage backend", applog.FieldError, err)
		}
	}()

	n, err := exporter.Backfill(ctx, store.Store)
	if err != nil {
		logger.Error("Journal backfill failed", applog.FieldError, err, applog.FieldCount, n)
		os.Exit(1)
	}
	logger.Info("Journal backfill finished", applog.FieldCount, n)
}
