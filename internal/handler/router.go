package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/bookclub/internal/metrics"
	"github.com/hitoshi/bookclub/internal/middleware"
)

// RouterDeps はルーター構築に必要な依存を保持する。
type RouterDeps struct {
	AuthHandler   *AuthHandler
	ReviewHandler *ReviewHandler
	PageHandler   *PageHandler
	HealthHandler *HealthHandler

	SessionValidator middleware.SessionValidator
	RateLimiter      *middleware.RateLimiter
	Logger           *slog.Logger

	CSRFConfig middleware.CSRFConfig

	// CORSAllowedOrigin はフロントエンドのオリジン。
	CORSAllowedOrigin string

	// HTTPMetrics はnilの場合、ステータスコードを記録しない。
	HTTPMetrics middleware.HTTPMetricsRecorder

	// MetricsGatherer はnilの場合、/metricsを公開しない。
	MetricsGatherer prometheus.Gatherer
}

// NewRouter はアプリケーションのルーターを構築する。
//
// ミドルウェアチェーン（外側から順に）:
//
//	recovery → security headers → CORS → logging
//
// 保護ルートにはさらにセッションゲート・CSRF検証・レート制限が重なる。
// セッションゲートを通過しないリクエストは保護対象のボディを一切受け取らない。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	// 公開ルート（セッション不要）
	r.Get("/health", deps.HealthHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", deps.AuthHandler.SignUp)
		r.Post("/login", deps.AuthHandler.SignIn)
		r.Post("/logout", deps.AuthHandler.SignOut)
		r.Get("/callback", deps.AuthHandler.Callback)
		r.Get("/me", deps.AuthHandler.Me)
	})

	// 保護ルート（セッションゲート必須）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionGateMiddleware(deps.SessionValidator))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/dashboard", deps.PageHandler.Dashboard)
		r.Get("/profile", deps.PageHandler.Profile)
		r.Get("/reviews", deps.PageHandler.Reviews)

		r.Get("/api/reviews", deps.ReviewHandler.List)
		r.Delete("/api/reviews/{reviewID}", deps.ReviewHandler.Delete)

		// レビュー投稿は専用のレート制限を重ねる
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.SubmissionMiddleware())
			}
			r.Post("/api/reviews", deps.ReviewHandler.Submit)
		})
	})

	return r
}
