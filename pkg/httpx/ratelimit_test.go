package httpx_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestJSONFieldKeyExtractor_RestoresBody(t *testing.T) {
	body := `{"email":" Alice@Example.com ","password":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	require.Equal(t, "alice@example.com", httpx.JSONFieldKeyExtractor("email")(req))

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.Equal(t, body, string(rest))
}

func TestJSONFieldKeyExtractor_Missing(t *testing.T) {
	for _, body := range []string{"", "not json", `{"email":42}`, `{"other":"x"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req), body)
	}
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co"}`))
	req.RemoteAddr = "10.0.0.1:1"

	key := httpx.CompositeKeyExtractor("|", httpx.IPKeyExtractor, httpx.JSONFieldKeyExtractor("email"))(req)
	require.Equal(t, "10.0.0.1|a@b.co", key)
}

func TestRateLimitMiddleware_BlocksAfterBurst(t *testing.T) {
	cfg := httpx.RateLimitConfig{Requests: 3, Window: time.Minute, Burst: 3}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for range 3 {
		require.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	}

	rec := call("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))

	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "rate_limited", body.Error)

	// Other callers have their own bucket.
	require.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	cfg := httpx.RateLimitConfig{Requests: 1, Window: time.Minute, Burst: 1}
	h := httpx.RateLimitByIPAndJSONField(cfg, "email")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Email string }
		require.NoError(t, httpx.DecodeJSON(r, &in))
		require.NotEmpty(t, in.Email)
		w.WriteHeader(http.StatusOK)
	}))

	call := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"`+email+`"}`))
		req.RemoteAddr = "10.0.0.1:1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, call("a@b.co"))
	require.Equal(t, http.StatusTooManyRequests, call("A@b.co"))
	require.Equal(t, http.StatusOK, call("c@d.co"))
}

func TestRateLimitMiddleware_EmptyKeyPassesThrough(t *testing.T) {
	cfg := httpx.RateLimitConfig{Requests: 1, Window: time.Minute, Burst: 1}
	h := httpx.RateLimitMiddleware(cfg, func(*http.Request) string { return "" })(okHandler())

	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitFromEnv(t *testing.T) {
	t.Setenv("RATELIMIT_TESTING_REQUESTS", "7")
	t.Setenv("RATELIMIT_TESTING_WINDOW_SEC", "30")
	t.Setenv("RATELIMIT_TESTING_BURST", "-1")

	cfg := httpx.RateLimitFromEnv("TESTING", httpx.RateLimitConfig{Requests: 1, Window: time.Minute, Burst: 2})
	require.Equal(t, 7, cfg.Requests)
	require.Equal(t, 30*time.Second, cfg.Window)
	require.Equal(t, 2, cfg.Burst)
}
