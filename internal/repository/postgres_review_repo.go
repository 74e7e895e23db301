package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/bookclub/internal/model"
)

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

// Create はレビューを作成する。
func (r *PostgresReviewRepo) Create(ctx context.Context, review *model.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO book_reviews (id, book_title, book_author, rating, review_text, media_urls, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		review.ID,
		review.BookTitle,
		review.BookAuthor,
		review.Rating,
		review.ReviewText,
		pq.Array(review.MediaURLs),
		review.UserID,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return nil
}

// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
func (r *PostgresReviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	review := &model.Review{}
	var mediaURLs pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`SELECT id, book_title, book_author, rating, review_text, media_urls, user_id, created_at
		 FROM book_reviews WHERE id = $1`,
		id,
	).Scan(
		&review.ID,
		&review.BookTitle,
		&review.BookAuthor,
		&review.Rating,
		&review.ReviewText,
		&mediaURLs,
		&review.UserID,
		&review.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review by ID: %w", err)
	}

	review.MediaURLs = []string(mediaURLs)
	return review, nil
}

// ListWithProfiles は全レビューを投稿者プロフィール付きでcreated_at降順に取得する。
func (r *PostgresReviewRepo) ListWithProfiles(ctx context.Context) ([]*model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.book_title, r.book_author, r.rating, r.review_text, r.media_urls, r.user_id, r.created_at,
		        p.display_name, p.avatar_url
		 FROM book_reviews r
		 LEFT JOIN user_profiles p ON p.user_id = r.user_id
		 ORDER BY r.created_at DESC, r.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*model.Review
	for rows.Next() {
		review := &model.Review{}
		var mediaURLs pq.StringArray
		var displayName, avatarURL sql.NullString

		if err := rows.Scan(
			&review.ID,
			&review.BookTitle,
			&review.BookAuthor,
			&review.Rating,
			&review.ReviewText,
			&mediaURLs,
			&review.UserID,
			&review.CreatedAt,
			&displayName,
			&avatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}

		review.MediaURLs = []string(mediaURLs)
		if displayName.Valid {
			review.Profile = &model.Profile{
				UserID:      review.UserID,
				DisplayName: displayName.String,
				AvatarURL:   avatarURL.String,
			}
		}

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review rows: %w", err)
	}

	return reviews, nil
}

// DeleteOwned は指定IDかつ指定ユーザー所有のレビューを削除し、削除行数を返す。
func (r *PostgresReviewRepo) DeleteOwned(ctx context.Context, id, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM book_reviews WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete review: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// compile-time interface check
var _ ReviewRepository = (*PostgresReviewRepo)(nil)
