// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/bookclub/internal/model"
)

// ReviewRepository は書籍レビューの永続化インターフェース。
type ReviewRepository interface {
	// Create はレビューを作成する。
	Create(ctx context.Context, review *model.Review) error

	// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
	// プロフィールのJOINは行わない。
	FindByID(ctx context.Context, id string) (*model.Review, error)

	// ListWithProfiles は全レビューを投稿者プロフィール付きで取得する。
	// created_at降順（最新が先頭）は一覧表示の決定性に関わるハード制約。
	ListWithProfiles(ctx context.Context) ([]*model.Review, error)

	// DeleteOwned は指定IDかつ指定ユーザー所有のレビューを削除し、
	// 削除された行数を返す。所有者条件はSQLのWHERE句で強制され、
	// アプリケーション層のチェックが唯一のゲートにならないようにする。
	DeleteOwned(ctx context.Context, id, userID string) (int64, error)
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// Upsert はプロフィールを冪等にUPSERTする。
	// セッション確立のたびに呼ばれ、表示名とアバターを最新化する。
	Upsert(ctx context.Context, profile *model.Profile) error

	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}
