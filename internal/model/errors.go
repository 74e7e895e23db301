// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired       = "AUTH_REQUIRED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUpstreamAuthFailed = "UPSTREAM_AUTH_FAILED"
	ErrCodeStorageFailed      = "STORAGE_FAILED"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeReviewNotFound     = "REVIEW_NOT_FOUND"
)

// NewAuthRequiredError は未認証エラーを生成する。
// 保護されたページではエラーペイロードを返さず、サインイン画面へリダイレクトする。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "You must be logged in to perform this action",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewValidationError は入力検証エラーを生成する。
// 検証エラーが返る場合、ネットワーク呼び出しは一切行われていない。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "Correct the input and try again.",
	}
}

// NewTooManyFilesError は添付ファイル数超過エラーを生成する。
func NewTooManyFilesError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("You can attach up to %d files", MaxMediaFiles),
		Category: "validation",
		Action:   "Remove some files and try again.",
	}
}

// NewUpstreamAuthError は認証プロバイダーからの拒否エラーを生成する。
// サインイン/サインアップではプロバイダーのメッセージをそのまま表示する。
// OAuthコールバック経路では呼び出し側でメッセージを汎用化すること。
func NewUpstreamAuthError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewStorageError はオブジェクトストレージ操作の失敗エラーを生成する。
func NewStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailed,
		Message:  "Failed to upload files",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewPersistenceError はレコード永続化の失敗エラーを生成する。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  "Unable to save review",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewForbiddenError は所有者以外による変更操作の拒否エラーを生成する。
// データ層への削除発行前に返されることを保証する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You can only delete your own reviews",
		Category: "auth",
		Action:   "Check that you are signed in with the right account.",
	}
}

// NewReviewNotFoundError はレビュー未検出エラーを生成する。
func NewReviewNotFoundError(reviewID string) *APIError {
	return &APIError{
		Code:     ErrCodeReviewNotFound,
		Message:  fmt.Sprintf("Review not found: %s", reviewID),
		Category: "validation",
		Action:   "Reload the review list.",
	}
}
