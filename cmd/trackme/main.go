package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"trackme/internal/auth"
	"trackme/internal/cache"
	"trackme/internal/cli"
	"trackme/internal/core"
	apphttp "trackme/internal/http"
	applog "trackme/internal/log"
	"trackme/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	backendResult := cli.OpenStoreOrUnavailable(startCtx, logger, cfg)
	tracker, closeTracker := cli.ResetTracker(startCtx, logger, cfg)
	startCancel()

	st := backendResult.Store
	clock := services.NewClock(cfg.Location())

	txCache := cache.NewLRUCache[[]core.Transaction](256, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(txCache)
	cacheManager.StartCleanup(cfg.CacheTTL)

	transactions := services.NewTransactionService(st, txCache, clock, logger)
	resetter := services.NewCycleResetter(st, tracker, logger)
	verifier := auth.NewVerifier(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthAudience)
	if !verifier.Ready() {
		logger.Warn("AUTH_SECRET not set, pages will wait for the identity provider")
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		Subscriptions:  services.NewSubscriptionService(st, clock, logger),
		Transactions:   transactions,
		Live:           services.NewLiveDashboard(st, resetter, clock, logger).WithTransactions(transactions),
		Resetter:       resetter,
		Verifier:       verifier,
		Clock:          clock,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.CookieSecure,
		DevLogin:       cfg.DevLogin,
		Ready: func(ctx context.Context) error {
			if st == nil {
				return services.ErrServiceUnavailable
			}
			_, err := st.Users(ctx)
			return err
		},
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		closeTracker()
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Store cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting trackme server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"publishing", backendResult.Publishing,
		"store_ready", st != nil,
		"auth_ready", verifier.Ready(),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
