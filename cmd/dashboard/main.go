package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botpanel/internal/botapi"
	"botpanel/internal/cache"
	"botpanel/internal/captcha"
	"botpanel/internal/config"
	"botpanel/internal/httpapi"
	"botpanel/internal/jobs"
	"botpanel/internal/logging"
	"botpanel/internal/metrics"
	"botpanel/internal/store"
	"botpanel/internal/telegram"
	"botpanel/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting botpanel dashboard", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		if err := pg.RunMigrations(ctx, migrations.Files); err != nil {
			pg.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrated")
		st = pg
	} else {
		lite, err := store.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		logger.Info("sqlite store ready", "path", cfg.SQLitePath)
		st = lite
	}
	defer st.Close()

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	botClient := botapi.New(botapi.Config{
		BaseURL: cfg.BotAPIBaseURL,
		APIKey:  cfg.BotAPIKey,
		Timeout: cfg.BotAPITimeout,
	}, logger, metricRegistry, redisClient)

	var verifier captcha.Verifier
	if cfg.TurnstileSecret != "" {
		verifier = captcha.NewTurnstile(cfg.TurnstileSecret)
	} else {
		logger.Warn("turnstile secret not set, captcha verification limited to presence checks")
	}

	tgVerifier := telegram.NewVerifier(cfg.TelegramVerifyTokens, logger)

	server := httpapi.New(httpapi.Config{
		Addr:               cfg.HTTPListenAddr,
		BasePath:           cfg.PublicBasePath,
		JWTSecret:          []byte(cfg.JWTSecret),
		TokenTTL:           cfg.TokenTTL,
		TransactionTTL:     cfg.TransactionTTL,
		WebhookUsernameMD5: cfg.PaymentWebhookUsernameMD5,
		WebhookPasswordMD5: cfg.PaymentWebhookPasswordMD5,
	}, st, redisClient, botClient, verifier, tgVerifier, logger, metricRegistry)

	runner := jobs.New(st, botClient, logger, metricRegistry)
	if err := runner.Start(); err != nil {
		return fmt.Errorf("start jobs: %w", err)
	}
	defer runner.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
