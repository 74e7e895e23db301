package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/bookclub/internal/middleware"
	"github.com/hitoshi/bookclub/internal/model"
	"github.com/hitoshi/bookclub/internal/repository"
)

// PageHandler は保護されたページのデータを返すハンドラー。
// ページ本体の描画はフロントエンドが行い、ここではページが必要とする
// データのみを返す。セッションゲートを通過しない限り到達しない。
type PageHandler struct {
	reviewService ReviewServiceInterface
	profileRepo   repository.ProfileRepository
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(reviewService ReviewServiceInterface, profileRepo repository.ProfileRepository) *PageHandler {
	return &PageHandler{
		reviewService: reviewService,
		profileRepo:   profileRepo,
	}
}

// userResponse はページに埋め込むログインユーザー情報。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Dashboard はダッシュボードページのデータを返す。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"page": "dashboard",
		"user": toUserResponse(user),
	})
}

// Profile はプロフィールページのデータを返す。
// GET /profile
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var profileBody *profileResponse
	if h.profileRepo != nil {
		profile, findErr := h.profileRepo.FindByUserID(r.Context(), user.ID)
		if findErr != nil {
			handleServiceError(w, findErr)
			return
		}
		if profile != nil {
			profileBody = &profileResponse{
				DisplayName: profile.DisplayName,
				AvatarURL:   profile.AvatarURL,
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"page":    "profile",
		"user":    toUserResponse(user),
		"profile": profileBody,
	})
}

// Reviews はレビュー一覧ページのデータを返す。
// 一覧はcreated_at降順で、ログインユーザー情報も併せて返す
// （フロントエンドが削除ボタンの表示判定に使う）。
// GET /reviews
func (h *PageHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	reviews, err := h.reviewService.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		responses = append(responses, toReviewResponse(rv))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"page":    "reviews",
		"user":    toUserResponse(user),
		"reviews": responses,
	})
}
