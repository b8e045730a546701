package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
)

// TokenService signs the four token kinds. Only refresh tokens are
// stateful: the registry keeps the fingerprint of the newest one per user.
type TokenService struct {
	Keys       TokenKeys
	Registry   RefreshRegistry
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	EmailTTL   time.Duration
	ResetTTL   time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TokenService) sign(c jwtx.Claims) (domain.IssuedToken, error) {
	raw, err := s.Keys.Sign(c)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign %s token: %w", c.Kind, err)
	}
	return domain.IssuedToken{Value: raw, ExpiresAt: c.ExpiresAtTime()}, nil
}

// IssueAccess signs a bearer token carrying the user's email and role names.
func (s *TokenService) IssueAccess(_ context.Context, u domain.PublicUser) (domain.IssuedToken, error) {
	c := jwtx.NewClaims(jwtx.KindAccess, u.ID, s.Issuer, ttlOr(s.AccessTTL, jwtx.DefaultAccessTokenTTL), s.now())
	c.Email = u.Email
	c.Roles = append([]string(nil), u.Roles...)
	return s.sign(c)
}

// IssueRefresh signs a refresh token and makes it the user's only live one.
func (s *TokenService) IssueRefresh(ctx context.Context, userID string) (domain.IssuedToken, error) {
	ttl := ttlOr(s.RefreshTTL, jwtx.DefaultRefreshTokenTTL)
	tok, err := s.sign(jwtx.NewClaims(jwtx.KindRefresh, userID, s.Issuer, ttl, s.now()))
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if err := s.Registry.Store(ctx, userID, tok.Value, ttl); err != nil {
		return domain.IssuedToken{}, fmt.Errorf("store refresh token: %w", err)
	}
	return tok, nil
}

func (s *TokenService) IssueEmailVerification(_ context.Context, userID string) (domain.IssuedToken, error) {
	ttl := ttlOr(s.EmailTTL, jwtx.DefaultEmailTokenTTL)
	return s.sign(jwtx.NewClaims(jwtx.KindEmailVerification, userID, s.Issuer, ttl, s.now()))
}

func (s *TokenService) IssuePasswordReset(_ context.Context, userID string) (domain.IssuedToken, error) {
	ttl := ttlOr(s.ResetTTL, jwtx.DefaultResetTokenTTL)
	return s.sign(jwtx.NewClaims(jwtx.KindPasswordReset, userID, s.Issuer, ttl, s.now()))
}

// validate returns the subject of a well signed, unexpired token of kind.
// Every failure collapses into ErrInvalidToken; the cause is only logged.
func (s *TokenService) validate(ctx context.Context, raw string, kind jwtx.Kind) (string, error) {
	l := slogx.FromContext(ctx)

	if raw == "" {
		return "", ErrInvalidToken
	}
	c, err := s.Keys.Verify(raw)
	if err == nil {
		err = c.Expect(kind)
	}
	if err == nil && c.Subject == "" {
		err = jwtx.ErrInvalidClaim
	}
	if err != nil {
		l.Debug("token rejected", slog.String("kind", string(kind)), slog.Any("error", err))
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// ValidateAccess returns the user id of a valid access token.
func (s *TokenService) ValidateAccess(ctx context.Context, raw string) (string, error) {
	return s.validate(ctx, raw, jwtx.KindAccess)
}

// ValidateRefresh also requires the token to be the registered one, so a
// rotated or revoked token is rejected even before it expires.
func (s *TokenService) ValidateRefresh(ctx context.Context, raw string) (string, error) {
	userID, err := s.validate(ctx, raw, jwtx.KindRefresh)
	if err != nil {
		return "", err
	}
	ok, err := s.Registry.Matches(ctx, userID, raw)
	if err != nil {
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if !ok {
		slogx.FromContext(ctx).Debug("refresh token not registered", slog.String("user_id", userID))
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *TokenService) ValidateEmailVerification(ctx context.Context, raw string) (string, error) {
	return s.validate(ctx, raw, jwtx.KindEmailVerification)
}

func (s *TokenService) ValidatePasswordReset(ctx context.Context, raw string) (string, error) {
	return s.validate(ctx, raw, jwtx.KindPasswordReset)
}

// Revoke drops the user's refresh token.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.Registry.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func ttlOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
