package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
	UserService *service.UserService
	Verifier    jwtx.Verifier
	Cookie      CookieConfig
}

// HandleRegister godoc
//
//	@Summary		Register a new account
//	@Description	Creates an unverified account and emails a verification link. Registrations are limited per source IP.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RegisterRequest		true	"Account details"
//	@Success		201		{object}	authsdk.RegisterResponse	"The created user"
//	@Failure		400		{object}	authsdk.APIError			"Validation failed, email in use or unknown role"
//	@Failure		403		{object}	authsdk.APIError			"Role cannot be self-assigned"
//	@Failure		429		{object}	authsdk.APIError			"Too many registrations from this address"
//	@Failure		500		{object}	authsdk.APIError			"Internal server error"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	u, err := h.AuthService.Register(r.Context(), service.RegisterRequest{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Password:  body.Password,
		Phone:     body.Phone,
		Address:   body.Address,
		Roles:     body.Roles,
		SourceIP:  httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		Message: "User registered successfully. Please check your email to verify your account.",
		User:    toSDKUser(u),
	})
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Checks credentials. A device that has not been verified gets an emailed OTP and requireOtp in the response; repeat the call with the otp field to finish.
//	@Description	With rememberMe a refresh token is returned and set as the refreshToken cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Tokens, or an OTP challenge"
//	@Failure		400		{object}	authsdk.APIError		"Invalid credentials, invalid OTP or unverified email"
//	@Failure		403		{object}	authsdk.APIError		"Account locked"
//	@Failure		429		{object}	authsdk.APIError		"Too many attempts"
//	@Failure		500		{object}	authsdk.APIError		"Internal server error"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	res, err := h.AuthService.Login(r.Context(), service.LoginRequest{
		Email:      body.Email,
		Password:   body.Password,
		OTP:        body.OTP,
		RememberMe: body.RememberMe,
		UserAgent:  r.UserAgent(),
		IPAddress:  httpx.ClientIP(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.Challenge {
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{RequireOTP: true, Message: "OTP sent"})
		return
	}
	h.writeSession(w, "Login successful", res.Session)
}

// HandleVerifyOTP godoc
//
//	@Summary		Verify a one-time code
//	@Description	login finishes a device challenge and returns tokens. resetPassword sets newPassword. changeDevice trusts the calling device and needs a bearer token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.VerifyOTPRequest	true	"Action and code"
//	@Success		200		{object}	authsdk.LoginResponse		"Tokens for login, a message otherwise"
//	@Failure		400		{object}	authsdk.APIError			"Invalid action, OTP or unverified email"
//	@Failure		401		{object}	authsdk.APIError			"changeDevice without a valid bearer token"
//	@Failure		404		{object}	authsdk.APIError			"Unknown email"
//	@Failure		429		{object}	authsdk.APIError			"Too many attempts"
//	@Failure		500		{object}	authsdk.APIError			"Internal server error"
//	@Router			/v1/auth/verify-otp [post].
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body authsdk.VerifyOTPRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	req := service.OTPRequest{
		Action:      body.Action,
		OTP:         body.OTP,
		Email:       body.Email,
		NewPassword: body.NewPassword,
		RememberMe:  body.RememberMe,
		UserAgent:   r.UserAgent(),
		IPAddress:   httpx.ClientIP(r),
	}
	if body.Action == string(service.OTPActionChangeDevice) {
		userID, ok := h.bearerSubject(r)
		if !ok {
			errUnauthorized.WriteError(w)
			return
		}
		req.UserID = userID
	}

	res, err := h.AuthService.VerifyOTP(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch res.Action {
	case service.OTPActionLogin:
		h.writeSession(w, "OTP verified, login successful", *res.Session)
	case service.OTPActionResetPassword:
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{Message: "Password has been reset successfully"})
	case service.OTPActionChangeDevice:
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{Message: "Device verified successfully"})
	}
}

// bearerSubject verifies an optional bearer access token.
func (h *AuthHandler) bearerSubject(r *http.Request) (string, bool) {
	raw, ok := httpx.BearerToken(r)
	if !ok {
		return "", false
	}
	claims, err := h.Verifier.Verify(raw)
	if err == nil {
		err = claims.Expect(jwtx.KindAccess)
	}
	if err != nil {
		slogx.FromContext(r.Context()).Debug("bearer token rejected", slog.Any("error", err))
		return "", false
	}
	return claims.Subject, claims.Subject != ""
}

// HandleVerifyEmail godoc
//
//	@Summary		Verify an email address
//	@Description	Consumes the token from the verification link. Repeating it is harmless.
//	@Tags			Auth
//	@Produce		json
//	@Param			token	path		string					true	"Verification token"
//	@Success		200		{object}	authsdk.MessageResponse	"Verified, or already verified"
//	@Failure		400		{object}	authsdk.APIError		"Invalid or expired token"
//	@Failure		404		{object}	authsdk.APIError		"User not found"
//	@Failure		500		{object}	authsdk.APIError		"Internal server error"
//	@Router			/v1/auth/verify-email/{token} [get].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	err := h.AuthService.VerifyEmail(r.Context(), r.PathValue("token"))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Email verified successfully"})
	case errors.Is(err, service.ErrAlreadyVerified):
		httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Email already verified"})
	default:
		writeError(w, r, err)
	}
}

// HandleForgotPassword godoc
//
//	@Summary		Request a password reset
//	@Description	Emails a reset link (method "link", the default) or a reset code (method "otp").
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ForgotPasswordRequest	true	"Email and method"
//	@Success		200		{object}	authsdk.MessageResponse			"Email sent"
//	@Failure		400		{object}	authsdk.APIError				"Validation failed"
//	@Failure		404		{object}	authsdk.APIError				"User not found"
//	@Failure		500		{object}	authsdk.APIError				"Internal server error"
//	@Router			/v1/auth/forget-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	if err := h.AuthService.ForgotPassword(r.Context(), body.Email, body.Method); err != nil {
		writeError(w, r, err)
		return
	}

	msg := "Password reset link sent to your email"
	if body.Method == string(service.ResetByOTP) {
		msg = "OTP sent to your email for password reset"
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msg})
}

// HandleResetPassword godoc
//
//	@Summary		Reset a password
//	@Description	Sets a new password using the token from the reset link and ends the refresh session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		200		{object}	authsdk.MessageResponse			"Password changed"
//	@Failure		400		{object}	authsdk.APIError				"Invalid token or weak password"
//	@Failure		500		{object}	authsdk.APIError				"Internal server error"
//	@Router			/v1/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	if err := h.AuthService.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password has been reset successfully"})
}

// HandleRefresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Takes the refresh token from the body or the refreshToken cookie and rotates it.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	false	"Refresh token, if not sent as a cookie"
//	@Success		200		{object}	authsdk.TokenResponse	"New tokens"
//	@Failure		401		{object}	authsdk.APIError		"Invalid, rotated or revoked refresh token"
//	@Failure		403		{object}	authsdk.APIError		"Account locked"
//	@Failure		500		{object}	authsdk.APIError		"Internal server error"
//	@Router			/v1/auth/refresh-token [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var body authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}

	raw := body.RefreshToken
	if raw == "" {
		raw = refreshFromCookie(r)
	}

	sess, err := h.AuthService.Refresh(r.Context(), raw)
	if errors.Is(err, service.ErrInvalidToken) {
		h.Cookie.clearRefresh(w)
		errUnauthorized.WriteError(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.Cookie.setRefresh(w, *sess.Refresh)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  sess.Access.Value,
		RefreshToken: sess.Refresh.Value,
		ExpiresIn:    expiresIn(sess.Access),
	})
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes the refresh token and clears its cookie. Trusted devices are kept.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Logged out"
//	@Failure		401	{object}	authsdk.APIError		"Missing or invalid access token"
//	@Failure		500	{object}	authsdk.APIError		"Internal server error"
//	@Security		BearerAuth
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errUnauthorized.WriteError(w)
		return
	}

	if err := h.AuthService.Logout(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	h.Cookie.clearRefresh(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out successfully"})
}

// HandleResendOTP godoc
//
//	@Summary		Send a device confirmation code
//	@Description	Emails a new code for the changeDevice action. Any earlier code stops working.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Code sent"
//	@Failure		401	{object}	authsdk.APIError		"Missing or invalid access token"
//	@Failure		429	{object}	authsdk.APIError		"Too many requests"
//	@Failure		500	{object}	authsdk.APIError		"Internal server error"
//	@Security		BearerAuth
//	@Router			/v1/auth/resend-otp [post].
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errUnauthorized.WriteError(w)
		return
	}

	if err := h.AuthService.ResendOTP(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "OTP sent"})
}

// HandleMe godoc
//
//	@Summary		Current user
//	@Description	Returns the public profile of the bearer.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.User		"The user"
//	@Failure		401	{object}	authsdk.APIError	"Missing or invalid access token"
//	@Failure		404	{object}	authsdk.APIError	"User no longer exists"
//	@Security		BearerAuth
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errUnauthorized.WriteError(w)
		return
	}

	u, err := h.UserService.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSDKUser(u))
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, msg string, sess service.Session) {
	if sess.Refresh != nil {
		h.Cookie.setRefresh(w, *sess.Refresh)
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse(msg, sess))
}
