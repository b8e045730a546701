package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestBearerSubjectLogsRejection(t *testing.T) {
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA, Issuer: "https://accounts.test"})
	require.NoError(t, err)
	h := &AuthHandler{Verifier: km.Verifier}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/verify-otp", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	req = req.WithContext(slogx.WithContext(req.Context(), logger))

	sub, ok := h.bearerSubject(req)
	require.False(t, ok)
	require.Empty(t, sub)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "bearer token rejected", entry["msg"])
	require.NotEmpty(t, entry["error"])
	require.NotContains(t, entry, "err")
}
