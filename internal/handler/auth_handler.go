// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/bookclub/internal/middleware"
	"github.com/hitoshi/bookclub/internal/model"
)

// リダイレクト先のパスはプレゼンテーション層とのルーティング契約。
const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password, confirmPassword string) error
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	ExchangeCode(ctx context.Context, code string) (*model.Session, error)
	CurrentUser(ctx context.Context, accessToken string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthMetricsRecorder は認証失敗のメトリクス記録インターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type AuthMetricsRecorder interface {
	RecordAuthFailure()
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics AuthMetricsRecorder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
// metricsがnilの場合は記録を行わない。
func NewAuthHandler(service AuthServiceInterface, metrics AuthMetricsRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// recordAuthFailure は認証失敗のメトリクスを記録する。
func (h *AuthHandler) recordAuthFailure() {
	if h.metrics != nil {
		h.metrics.RecordAuthFailure()
	}
}

// signUpRequest はサインアップリクエストのボディ。
type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// signInRequest はサインインリクエストのボディ。
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp はアカウント登録を処理する。
// POST /auth/signup
// 成功時、確認メールがプロバイダーから送信される。
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}

	if err := h.service.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Account created! Check your email to confirm your account",
	})
}

// SignIn はサインインを処理し、セッションCookieを設定する。
// POST /auth/login
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}

	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordAuthFailure()
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"redirect": dashboardPath,
	})
}

// SignOut はセッションを失効させ、サインイン画面へリダイレクトする。
// POST /auth/logout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		// プロバイダー側の失効に失敗してもCookieはクリアする
		if signOutErr := h.service.SignOut(r.Context(), cookie.Value); signOutErr != nil {
			slog.Error("failed to sign out", slog.String("error", signOutErr.Error()))
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// Callback は認証プロバイダーからのコールバックを処理する。
// GET /auth/callback?code=xxx
//
// エラーパラメータ付きの場合はエラーメッセージをURLエンコードして
// サインイン画面へリダイレクトする。コード交換に失敗した場合は内部詳細を
// 隠し、汎用メッセージでリダイレクトする（詳細はサーバーログのみ）。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. プロバイダーがエラーを返した場合
	if errParam := query.Get("error"); errParam != "" {
		message := query.Get("error_description")
		if message == "" {
			message = errParam
		}
		slog.Warn("auth callback returned error",
			slog.String("error", errParam),
			slog.String("error_description", query.Get("error_description")),
		)
		http.Redirect(w, r, loginPath+"?error="+encodeQueryValue(message), http.StatusTemporaryRedirect)
		return
	}

	// 2. 認可コードの交換
	code := query.Get("code")
	if code == "" {
		http.Redirect(w, r, loginPath, http.StatusTemporaryRedirect)
		return
	}

	session, err := h.service.ExchangeCode(r.Context(), code)
	if err != nil {
		h.recordAuthFailure()
		// 内部詳細はクライアントに晒さない
		slog.Error("auth code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, loginPath+"?error="+encodeQueryValue("Authentication failed"), http.StatusTemporaryRedirect)
		return
	}

	// 3. セッションCookieを設定してダッシュボードへ
	h.setSessionCookie(w, session)
	http.Redirect(w, r, dashboardPath, http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

// setSessionCookie はアクセストークンをHTTP Only Cookieとして設定する。
// 有効期限はプロバイダーのセッション期限に合わせる。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	maxAge := 0
	if !session.ExpiresAt.IsZero() {
		maxAge = int(time.Until(session.ExpiresAt).Seconds())
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieをクリアする。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// encodeQueryValue はクエリ値をURLエンコードする。
// スペースは"+"ではなく"%20"にする（encodeURIComponent互換）。
func encodeQueryValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
