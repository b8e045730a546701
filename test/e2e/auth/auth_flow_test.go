package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestAccountLifecycle walks registration, device challenge, refresh,
// logout and password reset against the real SMTP path.
func TestAccountLifecycle(t *testing.T) {
	s := startStack(t, stackOptions{env: relaxedLimits})
	ctx := t.Context()
	const email = "lifecycle@example.com"

	res := s.onboard(t, email, true)
	require.NotEmpty(t, res.RefreshToken, "rememberMe should return a refresh token")

	// The device is trusted now
	direct, err := s.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: testPassword})
	require.NoError(t, err)
	require.False(t, direct.RequireOTP)

	sess := s.Client.NewSession(res.AccessToken, res.RefreshToken, res.ExpiresIn)
	me, err := sess.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, email, me.Email)
	require.Equal(t, []string{"Client"}, me.Roles)

	rotated, err := s.Client.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	_, err = s.Client.Refresh(ctx, res.RefreshToken)
	assertStatus(t, err, http.StatusUnauthorized, "rotated refresh token should be rejected")

	sess = s.Client.NewSession(rotated.AccessToken, rotated.RefreshToken, rotated.ExpiresIn)
	require.NoError(t, sess.Logout(ctx))
	_, err = s.Client.Refresh(ctx, rotated.RefreshToken)
	assertStatus(t, err, http.StatusUnauthorized, "refresh after logout should be rejected")

	// Reset by link
	_, err = s.Client.ForgotPassword(ctx, authsdk.ForgotPasswordRequest{Email: email})
	require.NoError(t, err)
	_, err = s.Client.ResetPassword(ctx, authsdk.ResetPasswordRequest{
		Token:       s.latestLinkToken(t, email, "Password Reset Request"),
		NewPassword: "N3w!Passw",
	})
	require.NoError(t, err)
	s.latestMail(t, email, "Password Reset Confirmation")

	_, err = s.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: testPassword})
	assertStatus(t, err, http.StatusBadRequest, "old password should be rejected")

	_, err = s.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: "N3w!Passw"})
	require.NoError(t, err)
}

// TestOTPCannotBeReplayed verifies a code works once.
func TestOTPCannotBeReplayed(t *testing.T) {
	s := startStack(t, stackOptions{env: relaxedLimits})
	ctx := t.Context()
	const email = "replay@example.com"

	_, err := s.Client.Register(ctx, registerBody(email))
	require.NoError(t, err)
	_, err = s.Client.VerifyEmail(ctx, s.latestLinkToken(t, email, "Verify Your Email"))
	require.NoError(t, err)

	_, err = s.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: testPassword})
	require.NoError(t, err)
	code := s.latestCode(t, email, "Your login verification code")

	_, err = s.Client.VerifyOTP(ctx, authsdk.VerifyOTPRequest{Action: authsdk.OTPActionLogin, OTP: code, Email: email})
	require.NoError(t, err)

	_, err = s.Client.VerifyOTP(ctx, authsdk.VerifyOTPRequest{Action: authsdk.OTPActionLogin, OTP: code, Email: email})
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidOTP), "replayed code should be rejected, got %v", err)
}

// TestDuplicateRegistration verifies a second registration with the same
// email is refused whatever the other fields say.
func TestDuplicateRegistration(t *testing.T) {
	s := startStack(t, stackOptions{env: relaxedLimits})
	ctx := t.Context()

	_, err := s.Client.Register(ctx, registerBody("dup@example.com"))
	require.NoError(t, err)

	again := registerBody("DUP@example.com")
	again.FirstName = "Other"
	_, err = s.Client.Register(ctx, again)
	require.True(t, authsdk.IsCode(err, authsdk.ErrorCodeConflict), "got %v", err)
}

// TestMongoStore runs the onboarding flow with the MongoDB driver.
func TestMongoStore(t *testing.T) {
	s := startStack(t, stackOptions{env: relaxedLimits, mongo: true})
	ctx := t.Context()

	res := s.onboard(t, "mongo@example.com", false)
	me, err := s.Client.NewSession(res.AccessToken, "", res.ExpiresIn).Me(ctx)
	require.NoError(t, err)
	require.True(t, me.EmailVerified)

	health, err := s.Client.Readyz(ctx)
	assertHealthy(t, health, err)
}
