// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookclub/internal/model"
)

// SessionCookieName はアクセストークンを運搬するCookieの名前。
const SessionCookieName = "bc_session"

// loginPath は未認証アクセスのリダイレクト先（サインイン画面）。
const loginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// SessionValidator はセッション検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。検証は毎回認証プロバイダーへの
// 往復で行われる。ローカルキャッシュは信頼しない。
type SessionValidator interface {
	CurrentUser(ctx context.Context, accessToken string) (*model.User, error)
}

// NewSessionGateMiddleware はHTTP Only Cookieからアクセストークンを読み取り、
// 認証プロバイダーで再検証するミドルウェアを返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
// 未認証リクエストは無条件にサインイン画面へリダイレクトし、
// 保護対象のボディは一切生成しない。
// プロバイダーに到達できない場合もフェイルクローズでリダイレクトする。
func NewSessionGateMiddleware(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからアクセストークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			// 2. 認証プロバイダーでトークンを再検証
			user, err := validator.CurrentUser(r.Context(), cookie.Value)
			if err != nil {
				// プロバイダー到達不能。認証済みとして扱うことはできない
				slog.Error("session validation failed",
					slog.String("error", err.Error()),
				)
				redirectToLogin(w, r)
				return
			}
			if user == nil {
				redirectToLogin(w, r)
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// redirectToLogin はサインイン画面へリダイレクトする。
// POSTに対しても再送信させないため303を使う。
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションゲートを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
