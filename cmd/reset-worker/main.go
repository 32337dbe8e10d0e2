package main

import (
	"context"
	"os"
	"time"

	"trackme/internal/cli"
	"trackme/internal/config"
	applog "trackme/internal/log"
	"trackme/internal/scheduler"
	"trackme/internal/services"
)

const resetJob = "cycle-reset"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentReset)
	logger.Info("Starting reset-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is private to this process, nothing will be shared with the web server")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	backendResult := cli.MustOpenStore(startCtx, logger, cfg)
	tracker, closeTracker := cli.ResetTracker(startCtx, logger, cfg)
	startCancel()

	clock := services.NewClock(cfg.Location())
	resetter := services.NewCycleResetter(backendResult.Store, tracker, logger)

	sched := scheduler.New(logger, cfg.Location(), 10*time.Minute)
	if err := sched.Add(resetJob, cfg.ResetSchedule, func(ctx context.Context) error {
		_, err := resetter.RunAll(ctx, clock.Today())
		return err
	}); err != nil {
		logger.Error("Failed to schedule reset pass", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", applog.FieldError, err)
		}
		closeTracker()
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Store cleanup error", applog.FieldError, err)
		}
	})

	// Catch up once on startup so a long downtime does not wait a full cycle.
	if err := sched.RunNow(resetJob); err != nil {
		logger.Error("Startup reset pass failed", applog.FieldError, err)
	}
	sched.Start()
	logger.Info("Reset worker started", "schedule", cfg.ResetSchedule, "timezone", cfg.Timezone)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reset worker stopped")
}
