// Package model はドメインモデルを定義する。
package model

import "time"

const (
	// MinRating は許容される評価の下限。
	MinRating = 1
	// MaxRating は許容される評価の上限。
	MaxRating = 5
	// MaxMediaFiles は1件のレビューに添付できるメディアファイル数の上限。
	MaxMediaFiles = 5
)

// Review はユーザーが投稿した書籍レビューを表す。
// MediaURLsは添付ファイルの公開URLをアップロード順に保持する。
type Review struct {
	ID         string
	BookTitle  string
	BookAuthor string
	Rating     int
	ReviewText string
	MediaURLs  []string
	UserID     string
	CreatedAt  time.Time

	// Profile は読み取り時にJOINされる投稿者プロフィール。
	// プロフィール未作成の場合はnil。
	Profile *Profile
}

// ReviewInput はレビュー投稿のユーザー入力を表す。
type ReviewInput struct {
	BookTitle  string
	BookAuthor string
	Rating     int
	ReviewText string
}
