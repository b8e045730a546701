package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
)

// Client talks to the public endpoints of the accounts service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is sent on every request. The server keys device trust on
	// user agent and IP, so a stable value avoids repeated OTP challenges.
	UserAgent string
}

// NewClient creates a client with a 10 second timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		UserAgent:  "bartab-accounts-go",
	}
}

// Register creates an account. The verification email is sent by the server.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login checks credentials. When the device is unknown the response has
// RequireOTP set and no tokens; call again with the emailed code.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP completes a login or password reset with an emailed code.
// For the changeDevice action use Session.ChangeDevice.
func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/verify-otp", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail redeems an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*MessageResponse, error) {
	var out MessageResponse
	path := "/v1/auth/verify-email/" + url.PathEscape(token)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks for a reset link or code.
func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/forget-password", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/reset-password", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token is rotated; the old one stops working.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/refresh-token", "", RefreshRequest{RefreshToken: refreshToken}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// JWKS fetches the public signing keys.
func (c *Client) JWKS(ctx context.Context) (*jwtx.JWKS, error) {
	var out jwtx.JWKS
	if err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Livez reports whether the process is up.
func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/livez", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Readyz reports whether the store, cache and keys are usable.
func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/readyz", "", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends in as JSON (when non-nil) and decodes the body into out (when
// non-nil) if the status matches.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != want {
		return parseErrorResponse(resp, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
