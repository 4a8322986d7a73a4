package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/ratelimit"
)

func newTestLimiter(maxRequests int) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		MaxRequests: maxRequests,
		Window:      time.Minute,
	}, zap.NewNop())
}

func TestRateLimitMiddleware_AdmitsUnderQuota(t *testing.T) {
	mw := RateLimitMiddleware(newTestLimiter(2), zap.NewNop())
	handler := mw(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/chat", http.NoBody)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want %d", i, rr.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_RejectsOverQuota(t *testing.T) {
	mw := RateLimitMiddleware(newTestLimiter(1), zap.NewNop())
	handler := mw(okHandler())

	first := httptest.NewRequest("POST", "/api/chat", http.NoBody)
	first.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest("POST", "/api/chat", http.NoBody)
	second.RemoteAddr = "10.0.0.1:5678"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, second)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After: got %q, want %q", got, "60")
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	mw := RateLimitMiddleware(newTestLimiter(1), zap.NewNop())
	handler := mw(okHandler())

	first := httptest.NewRequest("POST", "/api/chat", http.NoBody)
	first.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	other := httptest.NewRequest("POST", "/api/chat", http.NoBody)
	other.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, other)

	if rr.Code != http.StatusOK {
		t.Fatalf("other client: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_ExemptPaths(t *testing.T) {
	mw := RateLimitMiddleware(newTestLimiter(1), zap.NewNop())
	handler := mw(okHandler())

	for _, path := range []string{"/", "/api/health", "/metrics"} {
		// Well past quota, still admitted.
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest("GET", path, http.NoBody)
			req.RemoteAddr = "10.0.0.1:1234"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("exempt path %s request %d: got %d", path, i, rr.Code)
			}
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassThrough(t *testing.T) {
	mw := RateLimitMiddleware(nil, zap.NewNop())
	handler := mw(okHandler())

	req := httptest.NewRequest("POST", "/api/chat", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
}
