package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
)

// Error codes carried in the "error" field of every error body.
const (
	ErrorCodeValidation     = "validation_error"
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeInvalidOTP     = "invalid_otp"
	ErrorCodeForbidden      = "forbidden"
	ErrorCodeAccountLocked  = "account_locked"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeConflict       = "conflict"
	ErrorCodeRateLimited    = "rate_limited"
	ErrorCodeServerError    = "server_error"
)

// APIError is both the server's error response and the client's error value.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"error"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WriteError writes the error as JSON with its status code.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

// NewAPIError builds an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, Code: code, Message: message}
}

var (
	ErrInvalidBody = NewAPIError(http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
	ErrServerError = NewAPIError(http.StatusInternalServerError, ErrorCodeServerError, "Server error")
)

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err == nil && apiErr.Code != "" {
		return apiErr
	}

	apiErr.Code = ErrorCodeServerError
	if resp.StatusCode < 500 {
		apiErr.Code = ErrorCodeInvalidRequest
	}
	apiErr.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return apiErr
}
