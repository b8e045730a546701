package service

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrEmailNotVerified   = errors.New("email_not_verified")
	ErrInvalidOTP         = errors.New("invalid_otp")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrAlreadyVerified    = errors.New("already_verified")
	ErrEmailTaken         = errors.New("email_taken")
	ErrUnknownRole        = errors.New("unknown_role")
	ErrRoleNotAllowed     = errors.New("role_not_allowed")
	ErrRateLimited        = errors.New("rate_limited")
	ErrInvalidAction      = errors.New("invalid_action")
	ErrInvalidMethod      = errors.New("invalid_method")
	ErrInvalidRoleName    = errors.New("invalid_role_name")
	ErrRoleExists         = errors.New("role_exists")
	ErrRoleNotFound       = errors.New("role_not_found")
)

// ValidationError lists the offending request fields with a message each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// RateLimitError is ErrRateLimited with the time left in the window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
