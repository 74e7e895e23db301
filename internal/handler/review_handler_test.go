package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookclub/internal/middleware"
	"github.com/hitoshi/bookclub/internal/model"
	"github.com/hitoshi/bookclub/internal/review"
)

// --- モック定義 ---

type mockReviewService struct {
	submitFn func(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error)
	listFn   func(ctx context.Context) ([]*model.Review, error)
	deleteFn func(ctx context.Context, user *model.User, reviewID string) error
}

func (m *mockReviewService) Submit(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, user, input, files)
	}
	return nil, nil
}

func (m *mockReviewService) List(ctx context.Context) ([]*model.Review, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockReviewService) Delete(ctx context.Context, user *model.User, reviewID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, user, reviewID)
	}
	return nil
}

var _ ReviewServiceInterface = (*mockReviewService)(nil)

func authedRequest(r *http.Request) *http.Request {
	user := &model.User{ID: "user-1", Email: "reader@example.com"}
	return r.WithContext(middleware.ContextWithUser(r.Context(), user))
}

func buildMultipartBody(t *testing.T, fields map[string]string, fileNames []string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for _, name := range fileNames {
		fw, err := w.CreateFormFile("media", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := io.WriteString(fw, "file-content"); err != nil {
			t.Fatalf("failed to write file content: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return &buf, w.FormDataContentType()
}

// --- テスト ---

func TestSubmit_ValidMultipart_Returns201(t *testing.T) {
	var gotInput model.ReviewInput
	var gotFiles []review.MediaFile

	h := NewReviewHandler(&mockReviewService{
		submitFn: func(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error) {
			gotInput = input
			gotFiles = files
			return &model.Review{
				ID:         "review-1",
				BookTitle:  input.BookTitle,
				BookAuthor: input.BookAuthor,
				Rating:     input.Rating,
				ReviewText: input.ReviewText,
				MediaURLs:  []string{"https://storage.example.com/object/public/book-review-media/user-user-1/1-photo.jpg"},
				UserID:     user.ID,
				CreatedAt:  time.Now(),
			}, nil
		},
	}, ReviewHandlerConfig{MaxUploadSize: 10 << 20})

	body, contentType := buildMultipartBody(t, map[string]string{
		"book_title":  "The Go Programming Language",
		"book_author": "Donovan & Kernighan",
		"rating":      "5",
		"review_text": "A thorough reference.",
	}, []string{"photo.jpg"})

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/reviews", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	if gotInput.BookTitle != "The Go Programming Language" {
		t.Errorf("title = %q", gotInput.BookTitle)
	}
	if gotInput.Rating != 5 {
		t.Errorf("rating = %d, want 5", gotInput.Rating)
	}
	if len(gotFiles) != 1 {
		t.Fatalf("file count = %d, want 1", len(gotFiles))
	}
	if gotFiles[0].Filename != "photo.jpg" {
		t.Errorf("filename = %q, want %q", gotFiles[0].Filename, "photo.jpg")
	}

	var resp struct {
		Review struct {
			ID        string   `json:"id"`
			MediaURLs []string `json:"media_urls"`
		} `json:"review"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Review.ID != "review-1" {
		t.Errorf("review ID = %q, want %q", resp.Review.ID, "review-1")
	}
	if len(resp.Review.MediaURLs) != 1 {
		t.Errorf("media URL count = %d, want 1", len(resp.Review.MediaURLs))
	}
}

func TestSubmit_NonNumericRating_Returns400(t *testing.T) {
	submitCalled := false
	h := NewReviewHandler(&mockReviewService{
		submitFn: func(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error) {
			submitCalled = true
			return nil, nil
		},
	}, ReviewHandlerConfig{MaxUploadSize: 10 << 20})

	body, contentType := buildMultipartBody(t, map[string]string{
		"book_title":  "Title",
		"book_author": "Author",
		"rating":      "five",
		"review_text": "Text",
	}, nil)

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/reviews", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if submitCalled {
		t.Error("service should not be called for a non-numeric rating")
	}
}

func TestSubmit_TooManyFiles_Returns400(t *testing.T) {
	h := NewReviewHandler(&mockReviewService{
		submitFn: func(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error) {
			return nil, model.NewTooManyFilesError()
		},
	}, ReviewHandlerConfig{MaxUploadSize: 10 << 20})

	body, contentType := buildMultipartBody(t, map[string]string{
		"book_title":  "Title",
		"book_author": "Author",
		"rating":      "3",
		"review_text": "Text",
	}, []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg"})

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/reviews", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "You can attach up to 5 files") {
		t.Errorf("body = %q, want file limit message", rec.Body.String())
	}
}

func TestSubmit_StorageFailure_Returns502(t *testing.T) {
	h := NewReviewHandler(&mockReviewService{
		submitFn: func(ctx context.Context, user *model.User, input model.ReviewInput, files []review.MediaFile) (*model.Review, error) {
			return nil, model.NewStorageError()
		},
	}, ReviewHandlerConfig{MaxUploadSize: 10 << 20})

	body, contentType := buildMultipartBody(t, map[string]string{
		"book_title":  "Title",
		"book_author": "Author",
		"rating":      "3",
		"review_text": "Text",
	}, []string{"photo.jpg"})

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/reviews", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if !strings.Contains(rec.Body.String(), "Failed to upload files") {
		t.Errorf("body = %q, want storage failure message", rec.Body.String())
	}
}

func TestList_ReturnsReviewsNewestFirst(t *testing.T) {
	now := time.Now()
	h := NewReviewHandler(&mockReviewService{
		listFn: func(ctx context.Context) ([]*model.Review, error) {
			return []*model.Review{
				{ID: "r2", BookTitle: "Newer", CreatedAt: now, Profile: &model.Profile{DisplayName: "reader"}},
				{ID: "r1", BookTitle: "Older", CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}, ReviewHandlerConfig{})

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/reviews", nil))
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Reviews []struct {
			ID      string `json:"id"`
			Profile *struct {
				DisplayName string `json:"display_name"`
			} `json:"user_profiles"`
		} `json:"reviews"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reviews) != 2 {
		t.Fatalf("review count = %d, want 2", len(resp.Reviews))
	}
	if resp.Reviews[0].ID != "r2" {
		t.Errorf("first review = %q, want newest first", resp.Reviews[0].ID)
	}
	if resp.Reviews[0].Profile == nil || resp.Reviews[0].Profile.DisplayName != "reader" {
		t.Error("expected joined profile on first review")
	}
	// プロフィール未作成の投稿者はnull
	if resp.Reviews[1].Profile != nil {
		t.Error("expected nil profile on second review")
	}
}

func TestDelete_NonOwner_Returns403(t *testing.T) {
	h := NewReviewHandler(&mockReviewService{
		deleteFn: func(ctx context.Context, user *model.User, reviewID string) error {
			return model.NewForbiddenError()
		},
	}, ReviewHandlerConfig{})

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/api/reviews/r1", nil))
	req = withChiURLParam(req, "reviewID", "r1")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), "You can only delete your own reviews") {
		t.Errorf("body = %q, want forbidden message", rec.Body.String())
	}
}

func TestDelete_Owner_Returns200(t *testing.T) {
	var gotReviewID string
	h := NewReviewHandler(&mockReviewService{
		deleteFn: func(ctx context.Context, user *model.User, reviewID string) error {
			gotReviewID = reviewID
			return nil
		},
	}, ReviewHandlerConfig{})

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/api/reviews/r1", nil))
	req = withChiURLParam(req, "reviewID", "r1")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotReviewID != "r1" {
		t.Errorf("review ID = %q, want %q", gotReviewID, "r1")
	}
}

func TestDelete_NotFound_Returns404(t *testing.T) {
	h := NewReviewHandler(&mockReviewService{
		deleteFn: func(ctx context.Context, user *model.User, reviewID string) error {
			return model.NewReviewNotFoundError(reviewID)
		},
	}, ReviewHandlerConfig{})

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/api/reviews/missing", nil))
	req = withChiURLParam(req, "reviewID", "missing")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// withChiURLParam はchiのルーティングコンテキストにURLパラメータを注入する。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
