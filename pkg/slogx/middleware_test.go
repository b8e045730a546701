package slogx_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "test", Format: "json", Output: &buf})

	var sawLogger bool
	h := slogx.HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = slogx.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, sawLogger)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["msg"])
	require.Equal(t, "WARN", entry["level"])
	require.Equal(t, "req-123", entry["req_id"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
}

func TestGeneratesRequestID(t *testing.T) {
	h := slogx.HTTPMiddleware(slogx.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.Header().Get("X-Request-ID"), 26)
}
