package http

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
)

// writeError is the single place service errors become HTTP responses.
// Unknown errors are logged and answered with a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)

	var rl *service.RateLimitError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	}

	if apiErr.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	}
	apiErr.WriteError(w)
}

func toAPIError(err error) *authsdk.APIError {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		e := authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, "Validation failed")
		e.Details = verr.Fields
		return e
	}

	switch {
	case errors.Is(err, service.ErrInvalidAction):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, "Invalid action")
	case errors.Is(err, service.ErrInvalidMethod):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, "Invalid reset method")
	case errors.Is(err, service.ErrInvalidRoleName):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, "Invalid role name")
	case errors.Is(err, service.ErrUnknownRole):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, "Unknown role")
	case errors.Is(err, service.ErrRoleNotAllowed):
		return authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeForbidden, "Role cannot be self-assigned")

	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrEmailNotVerified):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeUnauthorized, "Please verify your email before logging in")
	case errors.Is(err, service.ErrInvalidOTP):
		if errors.Is(err, cache.ErrOTPExpired) {
			return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidOTP, "OTP expired")
		}
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidOTP, "Invalid OTP")
	case errors.Is(err, service.ErrInvalidToken):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidToken, "Invalid or expired token")
	case errors.Is(err, service.ErrAccountLocked):
		return authsdk.NewAPIError(http.StatusForbidden, authsdk.ErrorCodeAccountLocked, "Account is temporarily locked")

	case errors.Is(err, service.ErrUserNotFound):
		return authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "User not found")
	case errors.Is(err, service.ErrRoleNotFound):
		return authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "Role not found")

	case errors.Is(err, service.ErrEmailTaken):
		return authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeConflict, "Email already in use")
	case errors.Is(err, service.ErrRoleExists):
		return authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeConflict, "Role already exists")

	case errors.Is(err, service.ErrRateLimited):
		return authsdk.NewAPIError(http.StatusTooManyRequests, authsdk.ErrorCodeRateLimited, "Too many requests, try again later")
	}

	return authsdk.NewAPIError(http.StatusInternalServerError, authsdk.ErrorCodeServerError, "Server error")
}

// errUnauthorized answers bearer and refresh failures.
var errUnauthorized = authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized, "Invalid or expired token")
