package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/mail"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
)

// OTPLedger holds at most one live code per owner, tagged with the purpose
// it was issued for. Verify returns cache.ErrOTPNotFound,
// cache.ErrOTPExpired, cache.ErrOTPPurpose or cache.ErrOTPMismatch.
type OTPLedger interface {
	Issue(ctx context.Context, ownerID, purpose string) (string, error)
	Verify(ctx context.Context, ownerID, purpose, code string) error
	Purge(ctx context.Context, ownerID string) error
}

// RefreshRegistry tracks the one live refresh token of each user.
type RefreshRegistry interface {
	Store(ctx context.Context, userID, token string, ttl time.Duration) error
	Matches(ctx context.Context, userID, token string) (bool, error)
	Revoke(ctx context.Context, userID string) error
}

// AttemptCounter is a fixed-window counter keyed by an arbitrary string.
type AttemptCounter interface {
	Hit(ctx context.Context, key string) (cache.Hit, error)
	Reset(ctx context.Context, key string) error
}

// Notifier delivers account emails.
type Notifier interface {
	SendVerification(ctx context.Context, u domain.User, token string) error
	SendOTP(ctx context.Context, u domain.User, purpose mail.Purpose, code string) error
	SendPasswordReset(ctx context.Context, u domain.User, token string) error
	SendPasswordResetConfirmation(ctx context.Context, u domain.User) error
}

// TokenKeys signs and verifies JWTs; *jwtx.KeyManager satisfies it.
type TokenKeys interface {
	Sign(c jwtx.Claims) (string, error)
	Verify(token string) (jwtx.Claims, error)
}

var (
	_ OTPLedger       = (*cache.OTPLedger)(nil)
	_ RefreshRegistry = (*cache.RefreshRegistry)(nil)
	_ AttemptCounter  = (*cache.Counter)(nil)
	_ Notifier        = (*mail.Mailer)(nil)
	_ TokenKeys       = (*jwtx.KeyManager)(nil)
)
