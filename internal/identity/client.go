// Package identity はホスト型認証プロバイダーのHTTPクライアントを提供する。
//
// 資格情報の管理、セッション発行、パスワードハッシュ、メール確認はすべて
// プロバイダー側で行われる。このパッケージはその機能を呼び出すだけであり、
// トークンは不透明な文字列として扱う。
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/bookclub/internal/model"
)

// Provider は認証プロバイダーの操作インターフェース。
// テストではモック実装に差し替える。
type Provider interface {
	// SignIn はメールアドレスとパスワードでサインインし、セッションを返す。
	// 資格情報が拒否された場合は*AuthErrorを返す。
	SignIn(ctx context.Context, email, password string) (*model.Session, error)

	// SignUp はアカウントを登録し、確認メールの送信をトリガーする。
	// redirectToは確認リンククリック後のリダイレクト先URL。
	SignUp(ctx context.Context, email, password, redirectTo string) error

	// SignOut はアクセストークンに紐づくセッションを失効させる。
	SignOut(ctx context.Context, accessToken string) error

	// GetUser はアクセストークンを検証し、対応するユーザーを返す。
	// トークンが無効・期限切れの場合は(nil, nil)を返す。これは正常系であり
	// エラーではない。プロバイダーに到達できない場合のみエラーを返す。
	GetUser(ctx context.Context, accessToken string) (*model.User, error)

	// ExchangeCode は認可コードをセッションに交換する。
	// コードが拒否された場合は*AuthErrorを返す。
	ExchangeCode(ctx context.Context, code string) (*model.Session, error)
}

// AuthError はプロバイダーが資格情報や認可コードを拒否したことを表す。
// Messageはユーザーに表示してよいプロバイダー由来のメッセージ。
type AuthError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return fmt.Sprintf("identity provider rejected request (status %d): %s", e.StatusCode, e.Message)
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	// BaseURL は認証APIのベースURL（例: "https://auth.example.com/auth/v1"）。
	BaseURL string
	// APIKey は全リクエストに付与するプロジェクトAPIキー。
	APIKey string
	// Timeout はHTTPリクエストのタイムアウト。ゼロ値の場合は10秒。
	Timeout time.Duration
}

// Client はProviderのHTTP実装。
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// sessionResponse はトークン発行エンドポイントのレスポンス。
type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        userResponse `json:"user"`
}

// userResponse はプロバイダーのユーザー表現。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// errorResponse はプロバイダーのエラーレスポンス。
// エンドポイントによりフィールド名が揺れるため両方を受ける。
type errorResponse struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

// message はレスポンスからユーザー向けメッセージを取り出す。
func (e *errorResponse) message() string {
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	if e.Message != "" {
		return e.Message
	}
	return "Authentication failed"
}

// SignIn はパスワードグラントでセッションを発行する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	return c.requestSession(ctx, c.config.BaseURL+"/token?grant_type=password", body)
}

// SignUp はアカウント登録を行う。確認メールはプロバイダーが送信する。
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) error {
	endpoint := c.config.BaseURL + "/signup"
	if redirectTo != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	body := map[string]string{
		"email":    email,
		"password": password,
	}

	resp, raw, err := c.doJSON(ctx, http.MethodPost, endpoint, body, "")
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAuthError(resp.StatusCode, raw)
	}

	return nil
}

// SignOut はセッションを失効させる。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, raw, err := c.doJSON(ctx, http.MethodPost, c.config.BaseURL+"/logout", nil, accessToken)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sign out failed with status %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

// GetUser はトークンを検証してユーザーを返す。無効なトークンは(nil, nil)。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	resp, raw, err := c.doJSON(ctx, http.MethodGet, c.config.BaseURL+"/user", nil, accessToken)
	if err != nil {
		return nil, err
	}

	// 無効・期限切れトークンは「セッションなし」の正常系
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get user failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var user userResponse
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("empty user ID in response")
	}

	return &model.User{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

// ExchangeCode は認可コードをセッションに交換する。
func (c *Client) ExchangeCode(ctx context.Context, code string) (*model.Session, error) {
	body := map[string]string{
		"auth_code": code,
	}
	return c.requestSession(ctx, c.config.BaseURL+"/token?grant_type=authorization_code", body)
}

// requestSession はトークン発行系エンドポイントを呼び、Sessionを組み立てる。
func (c *Client) requestSession(ctx context.Context, endpoint string, body map[string]string) (*model.Session, error) {
	resp, raw, err := c.doJSON(ctx, http.MethodPost, endpoint, body, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAuthError(resp.StatusCode, raw)
	}

	var sess sessionResponse
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	if sess.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &model.Session{
		AccessToken: sess.AccessToken,
		UserID:      sess.User.ID,
		ExpiresAt:   time.Now().Add(time.Duration(sess.ExpiresIn) * time.Second),
	}, nil
}

// doJSON はJSONリクエストを送信し、レスポンスと読み取り済みボディを返す。
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body map[string]string, accessToken string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.config.APIKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, raw, nil
}

// decodeAuthError はエラーレスポンスを*AuthErrorに変換する。
func decodeAuthError(statusCode int, raw []byte) *AuthError {
	var errResp errorResponse
	// パース失敗時はゼロ値のままフォールバックメッセージを使う
	_ = json.Unmarshal(raw, &errResp)

	return &AuthError{
		StatusCode: statusCode,
		Message:    errResp.message(),
	}
}

// compile-time interface check
var _ Provider = (*Client)(nil)
