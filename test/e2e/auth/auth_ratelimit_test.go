package auth_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint verifies login is limited per IP and email
// with the default OTP profile (3 req/min).
func TestRateLimitLoginEndpoint(t *testing.T) {
	s := startStack(t, stackOptions{})
	ctx := t.Context()

	var lastErr error
	for i := range 4 {
		_, err := s.Client.Login(ctx, authsdk.LoginRequest{Email: "nobody@example.com", Password: "Wr0ng!Pass"})
		if i < 3 {
			require.Error(t, err)
			require.NotEqual(t, http.StatusTooManyRequests, authsdk.StatusCode(err), "Should not be rate limited yet (request %d)", i+1)
		} else {
			lastErr = err
		}
	}

	assertStatus(t, lastErr, http.StatusTooManyRequests, "fourth login should be rate limited")
}

// TestRateLimitRegistration verifies the per-IP registration window.
func TestRateLimitRegistration(t *testing.T) {
	s := startStack(t, stackOptions{env: map[string]string{
		"REGISTER_RATE_LIMIT":         "2",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}})
	ctx := t.Context()

	for i := range 2 {
		_, err := s.Client.Register(ctx, registerBody(fmt.Sprintf("user%d@example.com", i)))
		require.NoError(t, err)
	}

	_, err := s.Client.Register(ctx, registerBody("user9@example.com"))
	assertStatus(t, err, http.StatusTooManyRequests, "third registration should be rate limited")
}
