package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookclub/internal/middleware"
	"github.com/hitoshi/bookclub/internal/model"
	"github.com/hitoshi/bookclub/internal/review"
)

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	Submit(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error)
	List(ctx context.Context) ([]*model.Review, error)
	Delete(ctx context.Context, user *model.User, reviewID string) error
}

// ReviewHandlerConfig はレビューハンドラーの設定。
type ReviewHandlerConfig struct {
	// MaxUploadSize はマルチパートリクエスト全体のメモリ上限（バイト）。
	MaxUploadSize int64
}

// ReviewHandler は書籍レビューのHTTPハンドラー。
type ReviewHandler struct {
	service ReviewServiceInterface
	config  ReviewHandlerConfig
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(service ReviewServiceInterface, config ReviewHandlerConfig) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		config:  config,
	}
}

// profileResponse はレビューに付随する投稿者プロフィールのレスポンス。
type profileResponse struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// reviewResponse はレビュー1件のレスポンス。
type reviewResponse struct {
	ID         string           `json:"id"`
	BookTitle  string           `json:"book_title"`
	BookAuthor string           `json:"book_author"`
	Rating     int              `json:"rating"`
	ReviewText string           `json:"review_text"`
	MediaURLs  []string         `json:"media_urls"`
	UserID     string           `json:"user_id"`
	CreatedAt  time.Time        `json:"created_at"`
	Profile    *profileResponse `json:"user_profiles,omitempty"`
}

// toReviewResponse はドメインモデルをレスポンスに変換する。
func toReviewResponse(r *model.Review) reviewResponse {
	resp := reviewResponse{
		ID:         r.ID,
		BookTitle:  r.BookTitle,
		BookAuthor: r.BookAuthor,
		Rating:     r.Rating,
		ReviewText: r.ReviewText,
		MediaURLs:  r.MediaURLs,
		UserID:     r.UserID,
		CreatedAt:  r.CreatedAt,
	}
	if resp.MediaURLs == nil {
		resp.MediaURLs = []string{}
	}
	if r.Profile != nil {
		resp.Profile = &profileResponse{
			DisplayName: r.Profile.DisplayName,
			AvatarURL:   r.Profile.AvatarURL,
		}
	}
	return resp
}

// List は全レビューを新しい順に返す。
// GET /api/reviews
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		responses = append(responses, toReviewResponse(rv))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"reviews": responses,
	})
}

// Submit はレビューを投稿する。
// POST /api/reviews (multipart/form-data)
//
// フォームフィールド: book_title, book_author, rating, review_text
// ファイルフィールド: media（最大5件）
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	if err := r.ParseMultipartForm(h.config.MaxUploadSize); err != nil {
		slog.Warn("failed to parse multipart form",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}()

	rating, err := strconv.Atoi(strings.TrimSpace(r.FormValue("rating")))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Rating must be a number"))
		return
	}

	input := model.ReviewInput{
		BookTitle:  r.FormValue("book_title"),
		BookAuthor: r.FormValue("book_author"),
		Rating:     rating,
		ReviewText: r.FormValue("review_text"),
	}

	var files []review.MediaFile
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["media"] {
			f, openErr := header.Open()
			if openErr != nil {
				writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Failed to read uploaded file"))
				return
			}
			defer f.Close()

			files = append(files, review.MediaFile{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        f,
			})
		}
	}

	created, err := h.service.Submit(r.Context(), user, input, files)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"review": toReviewResponse(created),
	})
}

// Delete はレビューを削除する。
// DELETE /api/reviews/{reviewID}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	reviewID := chi.URLParam(r, "reviewID")
	if reviewID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Review ID is required"))
		return
	}

	if err := h.service.Delete(r.Context(), user, reviewID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"message": "Review deleted",
	})
}
