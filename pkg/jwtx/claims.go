package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes per token kind.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultEmailTokenTTL   = time.Hour
	DefaultResetTokenTTL   = time.Hour
)

// Kind separates the token families signed with the same key. A verifier
// must never accept one kind where another is expected, otherwise an email
// verification link could be replayed as a bearer token.
type Kind string

const (
	KindAccess            Kind = "access"
	KindRefresh           Kind = "refresh"
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// ErrWrongKind is returned by Claims.Expect when the token_use claim differs.
var ErrWrongKind = errors.New("jwtx: unexpected token kind")

// Claims are the claims carried by every token the service signs.
type Claims struct {
	jwt.RegisteredClaims

	Kind Kind `json:"token_use"`

	// Access tokens only.
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// NewClaims builds minimally-correct claims for the given kind.
func NewClaims(kind Kind, subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind: kind,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. It also
// guarantees two tokens minted in the same second for the same user differ.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Expect checks the token kind.
func (c Claims) Expect(kind Kind) error {
	if c.Kind != kind {
		return ErrWrongKind
	}
	return nil
}

// HasRole reports whether the access token carries the named role.
func (c Claims) HasRole(name string) bool {
	return slices.Contains(c.Roles, name)
}

// ExpiresAtTime returns exp as a time.Time, zero when absent.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
