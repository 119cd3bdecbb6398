package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"motolucro/internal/amqp"
	"motolucro/internal/auth"
	"motolucro/internal/cache"
	"motolucro/internal/cli"
	"motolucro/internal/core"
	apphttp "motolucro/internal/http"
	"motolucro/internal/live"
	applog "motolucro/internal/log"
	"motolucro/internal/services"
)

const (
	snapshotCacheSize = 1000
	userCacheSize     = 5000
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	store := cli.OpenStore(context.Background(), logger, cfg)
	loc := cfg.Location()

	snapshots := cache.NewLRUCache[[]core.Transaction](snapshotCacheSize, cfg.CacheTTL)
	users := cache.NewLRUCache[core.User](userCacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.Logger.With(applog.FieldComponent, applog.ComponentCache))
	cacheManager.Register(snapshots)
	cacheManager.Register(users)
	cacheManager.StartCleanup(time.Minute)

	hub := live.NewHub(logger)
	hub.Start()

	txService := services.NewTransactionService(store.Store, snapshots, logger).WithNotifier(hub)

	// Exporting is optional; without a broker the journal is not fed.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		amqpClient.WithLogger(logger)
		txService.WithPublisher(amqpClient)
		logger.Info("Publishing transaction events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	userService := services.NewUserService(store.Store, users, logger)
	tokens := auth.NewTokens(cfg.JWTSecret)

	var adminLogin *auth.AdminLogin
	if cfg.AdminEnabled() {
		adminLogin = auth.NewAdminLogin(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminSessionTTL, tokens)
	} else {
		logger.Info("Admin login disabled - no ADMIN_USERNAME provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions:       txService,
		Users:              userService,
		Admin:              services.NewAdminService(userService, txService, logger),
		Tokens:             tokens,
		AdminLogin:         adminLogin,
		Hub:                hub,
		Store:              store.Store,
		Location:           loc,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		hub.Stop()
		cacheManager.Stop()
		cacheManager.Wait()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close storage backend", applog.FieldError, err)
		}
	})

	logger.Info("Starting motolucro server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
