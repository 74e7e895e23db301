// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ReviewSanitizerService はレビュー本文などのユーザー入力テキストをサニタイズし、
// XSS攻撃などのセキュリティリスクから他のユーザーを保護する。
// レビューはプレーンテキストとして扱うため、bluemondayの厳格ポリシーで
// すべてのマークアップを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ReviewSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// レビュー保存前に使用される。
type ReviewSanitizerService interface {
	// Sanitize は入力テキストからすべてのHTMLマークアップを除去して返す。
	// 前後の空白もあわせて除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// reviewSanitizer はReviewSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type reviewSanitizer struct {
	policy *bluemonday.Policy
}

// NewReviewSanitizer はReviewSanitizerServiceの新しいインスタンスを生成する。
// レビューはプレーンテキストであり、タグは一切許可しない。
func NewReviewSanitizer() *reviewSanitizer {
	return &reviewSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからすべてのHTMLマークアップを除去して返す。
func (s *reviewSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
