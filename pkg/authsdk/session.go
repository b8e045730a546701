package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Session makes authenticated calls and renews its access token through the
// refresh endpoint when it is about to expire.
type Session struct {
	client *Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// NewSession wraps tokens from a login or OTP verification. refreshToken may
// be empty, in which case the session simply ends when the access token does.
func (c *Client) NewSession(accessToken, refreshToken string, expiresIn int) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    expiryFrom(expiresIn),
	}
}

// Subtract 30 seconds so the token is renewed before it actually expires.
func expiryFrom(expiresIn int) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(expiresIn)*time.Second - 30*time.Second)
}

// AccessToken returns a valid access token, refreshing it if needed.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" || s.expiresAt.IsZero() || time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	tok, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", err
	}
	s.accessToken = tok.AccessToken
	s.refreshToken = tok.RefreshToken
	s.expiresAt = expiryFrom(tok.ExpiresIn)
	return s.accessToken, nil
}

func (s *Session) do(ctx context.Context, method, path string, in, out any, want int) error {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return err
	}
	return s.client.do(ctx, method, path, token, in, out, want)
}

// Me returns the authenticated user.
func (s *Session) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.do(ctx, http.MethodGet, "/v1/auth/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendOTP emails a fresh code, replacing any earlier one.
func (s *Session) ResendOTP(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/v1/auth/resend-otp", nil, nil, http.StatusOK)
}

// ChangeDevice trusts the calling device using an emailed code.
func (s *Session) ChangeDevice(ctx context.Context, otp string) error {
	req := VerifyOTPRequest{Action: OTPActionChangeDevice, OTP: otp}
	return s.do(ctx, http.MethodPost, "/v1/auth/verify-otp", req, nil, http.StatusOK)
}

// Logout revokes the refresh session on the server.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil, http.StatusOK); err != nil {
		return err
	}
	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}

// ListRoles returns all roles.
func (s *Session) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	if err := s.do(ctx, http.MethodGet, "/v1/roles", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRole returns one role.
func (s *Session) GetRole(ctx context.Context, id string) (*Role, error) {
	var out Role
	if err := s.do(ctx, http.MethodGet, "/v1/roles/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRole creates a role. Requires the Admin role.
func (s *Session) CreateRole(ctx context.Context, name string) (*Role, error) {
	var out Role
	if err := s.do(ctx, http.MethodPost, "/v1/roles", RoleRequest{Name: name}, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameRole renames a role. Requires the Admin role.
func (s *Session) RenameRole(ctx context.Context, id, name string) (*Role, error) {
	var out Role
	if err := s.do(ctx, http.MethodPut, "/v1/roles/"+url.PathEscape(id), RoleRequest{Name: name}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRole deletes a role. Requires the Admin role.
func (s *Session) DeleteRole(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/v1/roles/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}
