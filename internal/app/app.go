// Package app はアプリケーションの起動と依存の組み立てを行う。
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/bookclub/internal/auth"
	"github.com/hitoshi/bookclub/internal/config"
	"github.com/hitoshi/bookclub/internal/database"
	"github.com/hitoshi/bookclub/internal/handler"
	"github.com/hitoshi/bookclub/internal/identity"
	"github.com/hitoshi/bookclub/internal/logger"
	"github.com/hitoshi/bookclub/internal/metrics"
	"github.com/hitoshi/bookclub/internal/middleware"
	"github.com/hitoshi/bookclub/internal/repository"
	"github.com/hitoshi/bookclub/internal/review"
	"github.com/hitoshi/bookclub/internal/security"
	"github.com/hitoshi/bookclub/internal/storage"
)

// shutdownTimeout はグレースフルシャットダウンの猶予時間。
const shutdownTimeout = 15 * time.Second

// Run はコマンドライン引数に応じてアプリケーションを実行する。
func Run(args []string) error {
	logger.SetupDefault(os.Stdout)

	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandHealthcheck:
		return runHealthcheck(cfg)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// runServe は依存を組み立ててHTTPサーバーを起動する。
// SIGINT/SIGTERMでグレースフルシャットダウンする。
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// 外部クライアント
	identityClient := identity.NewClient(identity.ClientConfig{
		BaseURL: cfg.AuthBaseURL,
		APIKey:  cfg.AuthAPIKey,
		Timeout: cfg.AuthTimeout,
	})
	storageClient := storage.NewClient(storage.ClientConfig{
		BaseURL: cfg.StorageBaseURL,
		APIKey:  cfg.AuthAPIKey,
		Timeout: cfg.StorageTimeout,
	})

	// リポジトリ
	reviewRepo := repository.NewPostgresReviewRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	// メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// サービス
	authService := auth.NewService(identityClient, profileRepo, auth.ServiceConfig{
		BaseURL: cfg.BaseURL,
	})
	sanitizer := security.NewReviewSanitizer()
	reviewService := review.NewService(reviewRepo, storageClient, sanitizer, collector, review.ServiceConfig{
		MediaBucket: cfg.MediaBucket,
	})

	// レート制限
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		SubmitRate:      rate.Limit(float64(cfg.RateLimitSubmit) / 60.0),
		SubmitBurst:     cfg.RateLimitSubmit,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	// ハンドラー
	authHandler := handler.NewAuthHandler(authService, collector, handler.AuthHandlerConfig{
		CookieDomain: cfg.CookieDomain,
		CookieSecure: cfg.CookieSecure,
	})
	reviewHandler := handler.NewReviewHandler(reviewService, handler.ReviewHandlerConfig{
		MaxUploadSize: cfg.MaxUploadSize,
	})
	pageHandler := handler.NewPageHandler(reviewService, profileRepo)
	healthHandler := handler.NewHealthHandler(db)

	router := handler.NewRouter(handler.RouterDeps{
		AuthHandler:      authHandler,
		ReviewHandler:    reviewHandler,
		PageHandler:      pageHandler,
		HealthHandler:    healthHandler,
		SessionValidator: authService,
		RateLimiter:      rateLimiter,
		Logger:           slog.Default(),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HTTPMetrics:       collector,
		MetricsGatherer:   registry,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", slog.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// runMigrate はデータベースマイグレーションを適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running migrations")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	slog.Info("migrations applied")
	return nil
}

// runHealthcheck はデータベース疎通を確認して終了する。
// コンテナのヘルスチェックから利用する。
func runHealthcheck(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}

	fmt.Println("ok")
	return nil
}
