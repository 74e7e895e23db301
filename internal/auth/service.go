// Package auth はセッションゲートとサインイン・サインアップのフローを提供する。
//
// セッションの発行・検証・失効はすべて外部の認証プロバイダーが行う。
// このパッケージはCookieで運搬されたアクセストークンを毎回プロバイダーに
// 問い合わせて再検証する。ローカルにキャッシュしたセッション情報を
// 信頼することはない（偽造・陳腐化の恐れがあるため）。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/bookclub/internal/identity"
	"github.com/hitoshi/bookclub/internal/model"
	"github.com/hitoshi/bookclub/internal/repository"
)

// minPasswordLength はサインアップ時のパスワード最小長。
const minPasswordLength = 6

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// BaseURL はこのアプリケーションの公開URL。
	// 確認メールのリダイレクト先（{BaseURL}/auth/callback）の組み立てに使う。
	BaseURL string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider    identity.Provider
	profileRepo repository.ProfileRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(provider identity.Provider, profileRepo repository.ProfileRepository, config ServiceConfig) *Service {
	return &Service{
		provider:    provider,
		profileRepo: profileRepo,
		config:      config,
	}
}

// CurrentSession は現在のセッションを返す。
// トークンが空、またはプロバイダーがトークンを拒否した場合は(nil, nil)を返す。
// これは正常系であり、エラーではない。
// プロバイダーに到達できない場合はエラーを返す。呼び出し側は認証済みとして
// 扱ってはならない（フェイルクローズ）。
func (s *Service) CurrentSession(ctx context.Context, accessToken string) (*model.Session, error) {
	if accessToken == "" {
		return nil, nil
	}

	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to validate session with identity provider: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return &model.Session{
		AccessToken: accessToken,
		UserID:      user.ID,
	}, nil
}

// CurrentUser は現在のユーザーを返す。セッションがない場合は(nil, nil)を返す。
// 検証は毎回プロバイダーへの往復で行う。
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, nil
	}

	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to validate session with identity provider: %w", err)
	}

	return user, nil
}

// SignUp はアカウントを登録する。
// 検証エラーの場合はプロバイダーへの呼び出しを一切行わない。
// 成功時、確認メールはプロバイダーから送信される。
func (s *Service) SignUp(ctx context.Context, email, password, confirmPassword string) error {
	if email == "" || password == "" || confirmPassword == "" {
		return model.NewValidationError("All fields are required")
	}

	if len(password) < minPasswordLength {
		return model.NewValidationError("Password must be at least 6 characters")
	}

	if password != confirmPassword {
		return model.NewValidationError("Passwords do not match")
	}

	redirectTo := strings.TrimRight(s.config.BaseURL, "/") + "/auth/callback"

	if err := s.provider.SignUp(ctx, email, password, redirectTo); err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			// サインアップではプロバイダーのメッセージをそのまま表示する
			return model.NewUpstreamAuthError(authErr.Message)
		}
		return fmt.Errorf("sign up request failed: %w", err)
	}

	slog.Info("sign up accepted", slog.String("email", email))
	return nil
}

// SignIn はメールアドレスとパスワードでサインインし、セッションを返す。
// 成功時にプロフィールのスナップショットをUPSERTする。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, model.NewValidationError("All fields are required")
	}

	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			// サインインではプロバイダーのメッセージをそのまま表示する
			return nil, model.NewUpstreamAuthError(authErr.Message)
		}
		return nil, fmt.Errorf("sign in request failed: %w", err)
	}

	s.syncProfile(ctx, session)

	slog.Info("user signed in", slog.String("user_id", session.UserID))
	return session, nil
}

// SignOut はセッションを失効させる。
// プロバイダー側の失効に失敗してもCookieのクリアは呼び出し側で必ず行うこと。
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}

	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	slog.Info("user signed out")
	return nil
}

// ExchangeCode は認可コードをセッションに交換する。
// コールバック経路のエラーメッセージ汎用化は呼び出し側（ハンドラー）で行う。
func (s *Service) ExchangeCode(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, model.NewValidationError("Authorization code is required")
	}

	session, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	s.syncProfile(ctx, session)

	slog.Info("authorization code exchanged", slog.String("user_id", session.UserID))
	return session, nil
}

// syncProfile はセッション確立時にプロフィールスナップショットをUPSERTする。
// 失敗してもサインインは継続する（表示名のデフォルトはメールのローカル部）。
func (s *Service) syncProfile(ctx context.Context, session *model.Session) {
	if s.profileRepo == nil {
		return
	}

	user, err := s.provider.GetUser(ctx, session.AccessToken)
	if err != nil || user == nil {
		slog.Warn("failed to fetch user for profile sync")
		return
	}

	now := time.Now()
	profile := &model.Profile{
		UserID:      user.ID,
		DisplayName: displayNameFromEmail(user.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		slog.Warn("failed to upsert profile",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// displayNameFromEmail はメールアドレスのローカル部を表示名として返す。
func displayNameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	if email != "" {
		return email
	}
	return "Unknown User"
}
