package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestClient_LoginChallengeThenTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req authsdk.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.OTP == "" {
			_ = json.NewEncoder(w).Encode(authsdk.LoginResponse{RequireOTP: true, Message: "OTP sent"})
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.LoginResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := authsdk.NewClient(srv.URL + "/")
	res, err := c.Login(context.Background(), authsdk.LoginRequest{Email: "a@b.co", Password: "pw"})
	require.NoError(t, err)
	require.True(t, res.RequireOTP)
	require.Empty(t, res.AccessToken)

	res, err = c.Login(context.Background(), authsdk.LoginRequest{Email: "a@b.co", Password: "pw", OTP: "123456"})
	require.NoError(t, err)
	require.Equal(t, "a", res.AccessToken)
}

func TestClient_ErrorParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/register":
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeConflict, "Email already exists").WriteError(w)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := authsdk.NewClient(srv.URL)

	_, err := c.Register(context.Background(), authsdk.RegisterRequest{Email: "a@b.co"})
	require.Error(t, err)
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeConflict))
	require.Equal(t, http.StatusBadRequest, authsdk.StatusCode(err))

	_, err = c.Livez(context.Background())
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeServerError))
	require.Equal(t, http.StatusBadGateway, authsdk.StatusCode(err))
}

func TestSession_RefreshesExpiredToken(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/refresh-token":
			refreshes.Add(1)
			var req authsdk.RefreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "old-refresh", req.RefreshToken)
			_ = json.NewEncoder(w).Encode(authsdk.TokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 3600})
		case "/v1/auth/me":
			require.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(authsdk.User{ID: "u1"})
		}
	}))
	defer srv.Close()

	// expiresIn of 1s is already inside the renewal buffer.
	s := authsdk.NewClient(srv.URL).NewSession("old-access", "old-refresh", 1)

	me, err := s.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", me.ID)

	_, err = s.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), refreshes.Load())
}
