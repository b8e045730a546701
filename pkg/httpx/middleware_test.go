package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := httpx.BearerToken(req)
	require.False(t, ok)

	req.Header.Set("Authorization", "bearer abc.def")
	tok, ok := httpx.BearerToken(req)
	require.True(t, ok)
	require.Equal(t, "abc.def", tok)

	req.Header.Set("Authorization", "Basic Zm9v")
	_, ok = httpx.BearerToken(req)
	require.False(t, ok)
}

func TestAuthnMiddleware(t *testing.T) {
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA, Issuer: "iss"})
	require.NoError(t, err)

	var seen jwtx.Claims
	h := httpx.AuthnMiddleware(km.Verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		id, ok := httpx.UserIDFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, c.Subject, id)
		seen = c
		w.WriteHeader(http.StatusOK)
	}))

	call := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing", func(t *testing.T) {
		rec := call("")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
	})

	t.Run("access token", func(t *testing.T) {
		tok, err := km.Sign(jwtx.NewClaims(jwtx.KindAccess, "user-1", "iss", time.Minute, time.Now()))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, call("Bearer "+tok).Code)
		require.Equal(t, "user-1", seen.Subject)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		tok, err := km.Sign(jwtx.NewClaims(jwtx.KindRefresh, "user-1", "iss", time.Minute, time.Now()))
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, call("Bearer "+tok).Code)
	})

	t.Run("garbage", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, call("Bearer nope").Code)
	})
}

func TestRequireRole(t *testing.T) {
	h := httpx.RequireRole("Admin")(okHandler())

	call := func(roles ...string) int {
		c := jwtx.NewClaims(jwtx.KindAccess, "u", "iss", time.Minute, time.Now())
		c.Roles = roles
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(httpx.WithClaims(req.Context(), c))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, call("Client", "Admin"))
	require.Equal(t, http.StatusForbidden, call("Client"))
	require.Equal(t, http.StatusForbidden, call())
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Name string }

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, httpx.DecodeJSON(req, &v))
	require.Equal(t, "x", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.NoError(t, httpx.DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	require.Error(t, httpx.DecodeJSON(req, &v))
}
