// Package storage はオブジェクトストレージのHTTPクライアントを提供する。
//
// アップロード済みオブジェクトはパス規約でのみ所有者に紐づき、
// 公開URLで誰でも読み取れる。
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ObjectStore はオブジェクトストレージの操作インターフェース。
type ObjectStore interface {
	// Upload はオブジェクトをアップロードする。
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error

	// PublicURL はオブジェクトの公開URLを返す。ネットワーク呼び出しは行わない。
	PublicURL(bucket, path string) string

	// Remove は指定パスのオブジェクト群を削除する。
	// 挿入失敗時の補償削除に使用する。
	Remove(ctx context.Context, bucket string, paths []string) error
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	// BaseURL はストレージAPIのベースURL（例: "https://storage.example.com/storage/v1"）。
	BaseURL string
	// APIKey は全リクエストに付与するプロジェクトAPIキー。
	APIKey string
	// Timeout はHTTPリクエストのタイムアウト。ゼロ値の場合は30秒。
	Timeout time.Duration
}

// Client はObjectStoreのHTTP実装。
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Upload はオブジェクトをアップロードする。
// POST {base}/object/{bucket}/{path}
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	endpoint := fmt.Sprintf("%s/object/%s/%s", c.config.BaseURL, bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

// PublicURL はオブジェクトの公開URLを返す。
// GET {base}/object/public/{bucket}/{path}
func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.config.BaseURL, bucket, path)
}

// Remove は指定パスのオブジェクト群を削除する。
// DELETE {base}/object/{bucket} にパス一覧を渡す一括削除。
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	encoded, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("failed to encode remove request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/object/%s", c.config.BaseURL, bucket)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, strings.NewReader(string(encoded)))
	if err != nil {
		return fmt.Errorf("failed to create remove request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remove request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remove failed with status %d: %s", resp.StatusCode, string(raw))
	}

	return nil
}

// compile-time interface check
var _ ObjectStore = (*Client)(nil)
