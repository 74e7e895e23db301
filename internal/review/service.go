// Package review は書籍レビューの投稿・一覧・削除のドメインロジックを提供する。
package review

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookclub/internal/model"
	"github.com/hitoshi/bookclub/internal/repository"
	"github.com/hitoshi/bookclub/internal/storage"
)

// MediaFile はレビューに添付するアップロード対象ファイルを表す。
type MediaFile struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// Sanitizer はレビュー本文のサニタイズインターフェース。
// security.ReviewSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はレビューフローのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordReviewSubmitted()
	RecordSubmissionFailure(reason string)
	RecordMediaUploaded(count int)
	RecordMediaUploadFailure()
	RecordSubmitLatency(d time.Duration)
}

// ServiceConfig はレビューサービスの設定。
type ServiceConfig struct {
	// MediaBucket はメディアアップロード先のバケット名。
	MediaBucket string
}

// Service は書籍レビューのサービス層。
type Service struct {
	repo      repository.ReviewRepository
	store     storage.ObjectStore
	sanitizer Sanitizer
	metrics   MetricsRecorder
	config    ServiceConfig
}

// NewService はServiceを生成する。
// metricsがnilの場合は記録を行わない。
func NewService(
	repo repository.ReviewRepository,
	store storage.ObjectStore,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		sanitizer: sanitizer,
		metrics:   metrics,
		config:    config,
	}
}

// Submit はレビューを投稿する。
//
// 処理順序:
//  1. 入力検証。失敗した場合、ネットワーク呼び出しは一切行わない。
//  2. 添付ファイルを順番にアップロードし、公開URLを収集する。
//  3. レビュー行を1件INSERTする。
//
// アップロードまたはINSERTが失敗した場合、同一バッチでアップロード済みの
// オブジェクトはベストエフォートで削除する（孤児メディアを残さない）。
// 削除の失敗はログに記録するのみで、呼び出し側には影響しない。
func (s *Service) Submit(ctx context.Context, user *model.User, input model.ReviewInput, files []MediaFile) (*model.Review, error) {
	start := time.Now()

	if user == nil {
		s.recordFailure("not_authenticated")
		return nil, model.NewAuthRequiredError()
	}

	title := strings.TrimSpace(input.BookTitle)
	author := strings.TrimSpace(input.BookAuthor)
	text := strings.TrimSpace(input.ReviewText)
	if s.sanitizer != nil {
		text = s.sanitizer.Sanitize(text)
	}

	if title == "" || author == "" || text == "" {
		s.recordFailure("missing_field")
		return nil, model.NewValidationError("All fields except media are required")
	}

	// 入力面でのクランプを信頼せず、サーバー側で範囲を再検証する
	if input.Rating < model.MinRating || input.Rating > model.MaxRating {
		s.recordFailure("invalid_rating")
		return nil, model.NewValidationError(
			fmt.Sprintf("Rating must be between %d and %d", model.MinRating, model.MaxRating))
	}

	if len(files) > model.MaxMediaFiles {
		s.recordFailure("too_many_files")
		return nil, model.NewTooManyFilesError()
	}

	// 2. メディアのアップロード
	uploadedPaths := make([]string, 0, len(files))
	mediaURLs := make([]string, 0, len(files))

	for _, file := range files {
		path := mediaObjectPath(user.ID, file.Filename, time.Now())

		if err := s.store.Upload(ctx, s.config.MediaBucket, path, file.Data, file.ContentType); err != nil {
			slog.Error("media upload failed",
				slog.String("user_id", user.ID),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			s.cleanupUploaded(ctx, uploadedPaths)
			if s.metrics != nil {
				s.metrics.RecordMediaUploadFailure()
			}
			s.recordFailure("upload_failed")
			return nil, model.NewStorageError()
		}

		uploadedPaths = append(uploadedPaths, path)
		mediaURLs = append(mediaURLs, s.store.PublicURL(s.config.MediaBucket, path))
	}

	// 3. レビュー行のINSERT
	review := &model.Review{
		ID:         uuid.New().String(),
		BookTitle:  title,
		BookAuthor: author,
		Rating:     input.Rating,
		ReviewText: text,
		MediaURLs:  mediaURLs,
		UserID:     user.ID,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.Create(ctx, review); err != nil {
		slog.Error("review insert failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		s.cleanupUploaded(ctx, uploadedPaths)
		s.recordFailure("insert_failed")
		return nil, model.NewPersistenceError()
	}

	if s.metrics != nil {
		s.metrics.RecordReviewSubmitted()
		s.metrics.RecordMediaUploaded(len(mediaURLs))
		s.metrics.RecordSubmitLatency(time.Since(start))
	}

	slog.Info("review submitted",
		slog.String("review_id", review.ID),
		slog.String("user_id", user.ID),
		slog.Int("media_count", len(mediaURLs)),
	)

	return review, nil
}

// List は全レビューを投稿者プロフィール付きでcreated_at降順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Review, error) {
	reviews, err := s.repo.ListWithProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	return reviews, nil
}

// Delete はレビューを削除する。
// 所有者判定は削除発行前に評価され、さらにデータ層の削除条件にも
// user_idが含まれる（アプリケーション層のチェックを唯一のゲートにしない）。
// すでにアップロード済みのメディアオブジェクトは削除しない（即時・不可逆の行削除のみ）。
func (s *Service) Delete(ctx context.Context, user *model.User, reviewID string) error {
	if user == nil {
		return model.NewAuthRequiredError()
	}

	existing, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("failed to find review: %w", err)
	}
	if existing == nil {
		return model.NewReviewNotFoundError(reviewID)
	}

	// 認可判定はデータ層への削除発行前に行う
	if existing.UserID != user.ID {
		slog.Warn("review delete denied",
			slog.String("review_id", reviewID),
			slog.String("owner_id", existing.UserID),
			slog.String("acting_user_id", user.ID),
		)
		return model.NewForbiddenError()
	}

	rowsAffected, err := s.repo.DeleteOwned(ctx, reviewID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if rowsAffected == 0 {
		// 判定と削除の間に消えた場合
		return model.NewReviewNotFoundError(reviewID)
	}

	slog.Info("review deleted",
		slog.String("review_id", reviewID),
		slog.String("user_id", user.ID),
	)

	return nil
}

// cleanupUploaded は同一バッチでアップロード済みのオブジェクトをベストエフォートで削除する。
func (s *Service) cleanupUploaded(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}

	if err := s.store.Remove(ctx, s.config.MediaBucket, paths); err != nil {
		slog.Warn("failed to clean up uploaded media",
			slog.Int("count", len(paths)),
			slog.String("error", err.Error()),
		)
	}
}

// recordFailure は投稿失敗のメトリクスを記録する。
func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSubmissionFailure(reason)
	}
}

// mediaObjectPath はメディアオブジェクトの保存パスを組み立てる。
// 所有ユーザーID配下に、タイムスタンプ+元ファイル名のサフィックスで格納する
// （衝突回避であり、一意性の保証ではない）。
func mediaObjectPath(userID, filename string, now time.Time) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, " ", "_")
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("user-%s/%d-%s", userID, now.UnixMilli(), base)
}
