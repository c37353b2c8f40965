// Package main запускает HTTP-сервер магазина пакетов мобильного интернета.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bundlemart/internal/config"
	"github.com/mmeshcher/bundlemart/internal/handler"
	"github.com/mmeshcher/bundlemart/internal/lock"
	"github.com/mmeshcher/bundlemart/internal/middleware"
	"github.com/mmeshcher/bundlemart/internal/paystack"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/security"
	"github.com/mmeshcher/bundlemart/internal/service"
)

const (
	adminTokenTTL    = 12 * time.Hour
	verifyLockTTL    = 30 * time.Second
	shutdownTimeout  = 5 * time.Second
	redisPingTimeout = 3 * time.Second
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var gateway service.Gateway
	if cfg.PaystackSecretKey != "" {
		gateway = paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	} else {
		sugar.Warn("PAYSTACK_SECRET_KEY is not set, wallet top-ups are disabled")
	}

	svc := service.NewService(repo, gateway, logger, cfg.PaystackCallbackURL)
	defer svc.Close()

	if cfg.RedisAddress != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			sugar.Warnw("redis is unavailable, verification locks may fail", "addr", cfg.RedisAddress, "error", err.Error())
		}
		cancel()

		svc.AttachLocker(lock.NewRedisLocker(rdb, verifyLockTTL))
	}

	authSecret := cfg.AuthSecret
	if authSecret == "" {
		authSecret = uuid.NewString()
		sugar.Warn("AUTH_SECRET is not set, sessions will not survive a restart")
	}

	tokens := security.NewTokenManager(authSecret, adminTokenTTL)
	if cfg.AdminLogin != "" && cfg.AdminPasswordHash != "" {
		svc.AttachAdmin(service.AdminCredentials{
			Login:        cfg.AdminLogin,
			PasswordHash: []byte(cfg.AdminPasswordHash),
		}, tokens)
	} else {
		sugar.Warn("admin credentials are not set, admin API is disabled")
	}

	authMiddleware := middleware.NewAuthMiddleware(authSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, tokens)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Удаление просроченных ожидающих пополнений
	g.Go(func() error {
		svc.StartPendingCleanup(ctx, cfg.PendingPaymentTTL, cfg.PendingCleanupPeriod)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting bundlemart server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
