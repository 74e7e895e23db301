// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証プロバイダーが所有するユーザーを表す。
// このシステムからは読み取り専用であり、リクエストごとにプロバイダーから取得する。
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Session は認証プロバイダーが発行したログインセッションを表す。
// このシステムはセッションを生成・保存せず、Cookieで運搬して検証を委譲するのみ。
type Session struct {
	AccessToken string
	UserID      string
	ExpiresAt   time.Time
}

// IsExpired はセッションの有効期限が切れているかどうかを返す。
// 期限が不明（ゼロ値）の場合は期限切れとは見なさない。
func (s *Session) IsExpired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// Profile はレビュー表示用のユーザープロフィールスナップショットを表す。
// セッション確立時にプロバイダーのユーザー情報からUPSERTされるローカルレコード。
type Profile struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
