package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Fields: map[string]string{"email": "invalid"}}, http.StatusBadRequest, authsdk.ErrorCodeValidation},
		{"invalid action", service.ErrInvalidAction, http.StatusBadRequest, authsdk.ErrorCodeValidation},
		{"credentials", service.ErrInvalidCredentials, http.StatusBadRequest, authsdk.ErrorCodeUnauthorized},
		{"unverified", service.ErrEmailNotVerified, http.StatusBadRequest, authsdk.ErrorCodeUnauthorized},
		{"otp", fmt.Errorf("%w: %w", service.ErrInvalidOTP, cache.ErrOTPMismatch), http.StatusBadRequest, authsdk.ErrorCodeInvalidOTP},
		{"token", service.ErrInvalidToken, http.StatusBadRequest, authsdk.ErrorCodeInvalidToken},
		{"locked", service.ErrAccountLocked, http.StatusForbidden, authsdk.ErrorCodeAccountLocked},
		{"user not found", service.ErrUserNotFound, http.StatusNotFound, authsdk.ErrorCodeNotFound},
		{"email taken", service.ErrEmailTaken, http.StatusBadRequest, authsdk.ErrorCodeConflict},
		{"role exists", service.ErrRoleExists, http.StatusConflict, authsdk.ErrorCodeConflict},
		{"role not allowed", fmt.Errorf("%w: Admin", service.ErrRoleNotAllowed), http.StatusForbidden, authsdk.ErrorCodeForbidden},
		{"otp purpose", fmt.Errorf("%w: %w", service.ErrInvalidOTP, cache.ErrOTPPurpose), http.StatusBadRequest, authsdk.ErrorCodeInvalidOTP},
		{"rate limited", &service.RateLimitError{RetryAfter: time.Minute}, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimited},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, authsdk.ErrorCodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toAPIError(tt.err)
			require.Equal(t, tt.status, got.StatusCode)
			require.Equal(t, tt.code, got.Code)
		})
	}
}

func TestToAPIErrorOTPExpired(t *testing.T) {
	expired := toAPIError(fmt.Errorf("%w: %w", service.ErrInvalidOTP, cache.ErrOTPExpired))
	mismatch := toAPIError(fmt.Errorf("%w: %w", service.ErrInvalidOTP, cache.ErrOTPMismatch))

	require.Equal(t, "OTP expired", expired.Message)
	require.Equal(t, "Invalid OTP", mismatch.Message)
}

func TestWriteErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", nil)

	writeError(rec, req, &service.RateLimitError{RetryAfter: 1500 * time.Millisecond})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), `"error":"rate_limited"`)
}
