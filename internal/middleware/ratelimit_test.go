package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/bookclub/internal/model"
)

func newTestRateLimiter(generalBurst, submitBurst int) *RateLimiter {
	// テストでは補充がほぼ起きないよう低レートにする
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    generalBurst,
		SubmitRate:      rate.Limit(0.001),
		SubmitBurst:     submitBurst,
		CleanupInterval: time.Hour,
	})
}

func rateLimitedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	user := &model.User{ID: userID}
	return req.WithContext(ContextWithUser(req.Context(), user))
}

func TestGeneralMiddleware_WithinBurst_Allows(t *testing.T) {
	rl := newTestRateLimiter(3, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

func TestGeneralMiddleware_ExceedsBurst_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestRateLimiter(2, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-1"))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-1がバーストを使い切る
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// user-2は影響を受けない
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("user-2 status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSubmissionMiddleware_IndependentOfGeneralLimit(t *testing.T) {
	rl := newTestRateLimiter(1, 2)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	submission := rl.SubmissionMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// API全般のバーストを使い切る
	rec := httptest.NewRecorder()
	general.ServeHTTP(rec, rateLimitedRequest("user-1"))
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("general status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// レビュー投稿のリミッターは別枠
	rec = httptest.NewRecorder()
	submission.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("submission status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMiddleware_NoUserInContext_Returns401(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a user in context")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/reviews", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCleanup_RemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		SubmitRate:      rate.Limit(1),
		SubmitBurst:     1,
		CleanupInterval: time.Millisecond,
	})
	defer rl.Stop()

	rl.getOrCreateLimiter("user-1", &rl.generalMu, rl.generalLimiters, rl.config.GeneralRate, rl.config.GeneralBurst)
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("entry count = %d, want 1", rl.GeneralLimiterCount())
	}

	// 最終アクセスをTTL超過まで巻き戻す
	rl.generalMu.Lock()
	rl.generalLimiters["user-1"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("entry count after cleanup = %d, want 0", rl.GeneralLimiterCount())
	}
}
