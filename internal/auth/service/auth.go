package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/mail"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"github.com/aussiebroadwan/bartab-accounts/pkg/cryptox"
	"github.com/aussiebroadwan/bartab-accounts/pkg/idx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute

	defaultConfirmTimeout = 30 * time.Second
)

// AuthService runs the account flows: registration, login with the device
// check, OTP actions, password recovery, refresh and logout.
type AuthService struct {
	Store    store.Store
	Devices  *DeviceRegistry
	OTP      OTPLedger
	Tokens   *TokenService
	Notifier Notifier

	// Registrations limits sign-ups per source IP. Nil disables the limit.
	Registrations AttemptCounter

	// AdminEmails may register with roles that are not self-assignable.
	AdminEmails []string

	// FailedLogins counts wrong passwords per user. Reaching
	// LockoutThreshold inside its window locks the account for
	// LockoutDuration. Nil disables lockout.
	FailedLogins     AttemptCounter
	LockoutThreshold int64
	LockoutDuration  time.Duration

	// ConfirmTimeout bounds the background reset confirmation email.
	ConfirmTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	background sync.WaitGroup
}

// Session is what a completed login or refresh hands back.
type Session struct {
	Access  domain.IssuedToken
	Refresh *domain.IssuedToken // nil unless requested
	User    domain.PublicUser
}

type LoginRequest struct {
	Email      string
	Password   string
	OTP        string
	RememberMe bool
	UserAgent  string
	IPAddress  string
}

// LoginResult is either a Session or, with Challenge set, a pending OTP
// challenge and no tokens.
type LoginResult struct {
	Challenge bool
	Session   Session
}

type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
	Address   string
	Roles     []string
	SourceIP  string
	UserAgent string
}

// OTPRequest carries every field an OTP action may use. UserID is the
// bearer of the request and only read by changeDevice.
type OTPRequest struct {
	Action      string
	OTP         string
	Email       string
	NewPassword string
	RememberMe  bool
	UserID      string
	UserAgent   string
	IPAddress   string
}

// OTPResult holds a Session for the login action only.
type OTPResult struct {
	Action  OTPAction
	Session *Session
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Wait blocks until background emails have finished.
func (s *AuthService) Wait() {
	s.background.Wait()
}

// Login checks credentials, then either trusts the device, challenges it
// with an OTP, or redeems the OTP supplied with the request.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	v := &ValidationError{}
	checkEmail(v, "email", req.Email)
	if len(req.Password) < minPasswordLen {
		v.add("password", "must be at least 8 characters")
	}
	if err := v.orNil(); err != nil {
		return LoginResult{}, err
	}

	u, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	l := slogx.FromContext(ctx).With(slog.String("user_id", u.ID))

	if u.IsLocked(s.now()) {
		l.Info("login refused, account locked")
		return LoginResult{}, ErrAccountLocked
	}
	if !u.EmailVerified {
		return LoginResult{}, ErrEmailNotVerified
	}

	if !s.Devices.Trusted(u, req.UserAgent, req.IPAddress) {
		if req.OTP == "" {
			if err := s.challenge(ctx, u, mail.PurposeLogin); err != nil {
				return LoginResult{}, err
			}
			l.Info("otp challenge issued for unrecognised device")
			return LoginResult{Challenge: true}, nil
		}

		if err := s.redeemOTP(ctx, u.ID, mail.PurposeLogin, req.OTP); err != nil {
			l.Info("otp rejected at login", slog.Any("error", err))
			return LoginResult{}, err
		}
		if err := s.Devices.Remember(ctx, u.ID, req.UserAgent, req.IPAddress); err != nil {
			return LoginResult{}, err
		}
		l.Info("device verified")
	}

	sess, err := s.completeLogin(ctx, u, req.RememberMe)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: sess}, nil
}

// checkCredentials returns ErrInvalidCredentials for an unknown email and
// a wrong password alike.
func (s *AuthService) checkCredentials(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		cryptox.VerifyDummy(password)
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Warn("stored password hash unusable", slog.String("user_id", u.ID), slog.Any("error", err))
		}
		s.recordFailedLogin(ctx, u)
		return domain.User{}, ErrInvalidCredentials
	}

	if cryptox.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}
	return u, nil
}

// recordFailedLogin is best effort; a counter outage must not turn a wrong
// password into a server error.
func (s *AuthService) recordFailedLogin(ctx context.Context, u domain.User) {
	if s.FailedLogins == nil {
		return
	}
	l := slogx.FromContext(ctx).With(slog.String("user_id", u.ID))

	hit, err := s.FailedLogins.Hit(ctx, u.ID)
	if err != nil {
		l.Error("count failed login", slog.Any("error", err))
		return
	}

	threshold := s.LockoutThreshold
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if hit.Count < threshold {
		return
	}

	until := s.now().Add(ttlOr(s.LockoutDuration, DefaultLockoutDuration))
	if err := s.Store.Users().LockUser(ctx, u.ID, until); err != nil {
		l.Error("lock account", slog.Any("error", err))
		return
	}
	if err := s.FailedLogins.Reset(ctx, u.ID); err != nil {
		l.Error("reset failed login counter", slog.Any("error", err))
	}
	l.Warn("account locked after repeated failed logins", slog.Time("lock_until", until))
}

// rehash upgrades a legacy or weak hash after a successful check.
func (s *AuthService) rehash(ctx context.Context, u domain.User, password string) {
	l := slogx.FromContext(ctx).With(slog.String("user_id", u.ID))

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("rehash password", slog.Any("error", err))
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		l.Error("store rehashed password", slog.Any("error", err))
		return
	}
	l.Info("password hash upgraded")
}

// challenge issues a fresh code, replacing any pending one, and mails it.
func (s *AuthService) challenge(ctx context.Context, u domain.User, purpose mail.Purpose) error {
	code, err := s.OTP.Issue(ctx, u.ID, string(purpose))
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}
	if err := s.Notifier.SendOTP(ctx, u, purpose, code); err != nil {
		if perr := s.OTP.Purge(ctx, u.ID); perr != nil {
			slogx.FromContext(ctx).Error("purge undelivered otp", slog.String("user_id", u.ID), slog.Any("error", perr))
		}
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// redeemOTP wraps every ledger rejection in ErrInvalidOTP and keeps the
// cause for callers that want to tell expiry from a typo. A code mailed for
// one purpose never redeems another.
func (s *AuthService) redeemOTP(ctx context.Context, ownerID string, purpose mail.Purpose, code string) error {
	if !validOTPFormat(code) {
		return fmt.Errorf("%w: %w", ErrInvalidOTP, cache.ErrOTPMismatch)
	}
	err := s.OTP.Verify(ctx, ownerID, string(purpose), code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cache.ErrOTPNotFound),
		errors.Is(err, cache.ErrOTPExpired),
		errors.Is(err, cache.ErrOTPPurpose),
		errors.Is(err, cache.ErrOTPMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidOTP, err)
	default:
		return fmt.Errorf("verify otp: %w", err)
	}
}

func (s *AuthService) completeLogin(ctx context.Context, u domain.User, rememberMe bool) (Session, error) {
	now := s.now()

	if s.FailedLogins != nil {
		if err := s.FailedLogins.Reset(ctx, u.ID); err != nil {
			slogx.FromContext(ctx).Error("reset failed login counter", slog.String("user_id", u.ID), slog.Any("error", err))
		}
	}
	if err := s.Store.Users().TouchLastLogin(ctx, u.ID, now); err != nil {
		return Session{}, fmt.Errorf("touch last login: %w", err)
	}
	u.LastLogin = &now
	u.Locked, u.LockUntil = false, nil

	return s.newSession(ctx, u, rememberMe)
}

func (s *AuthService) newSession(ctx context.Context, u domain.User, withRefresh bool) (Session, error) {
	pub, err := publicUser(ctx, s.Store, u)
	if err != nil {
		return Session{}, err
	}

	access, err := s.Tokens.IssueAccess(ctx, pub)
	if err != nil {
		return Session{}, err
	}
	sess := Session{Access: access, User: pub}

	if withRefresh {
		refresh, err := s.Tokens.IssueRefresh(ctx, u.ID)
		if err != nil {
			return Session{}, err
		}
		sess.Refresh = &refresh
	}
	return sess, nil
}

// Register creates an unverified account and waits for the verification
// email to be handed off. If that fails the account is removed again.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (domain.PublicUser, error) {
	v := &ValidationError{}
	checkName(v, "firstName", req.FirstName)
	checkName(v, "lastName", req.LastName)
	checkEmail(v, "email", req.Email)
	checkPassword(v, "password", req.Password)
	checkPhone(v, "phone", req.Phone)
	checkRequired(v, "address", req.Address)
	for _, r := range req.Roles {
		if strings.TrimSpace(r) == "" {
			v.add("roles", "must not contain empty names")
		}
	}
	if err := v.orNil(); err != nil {
		return domain.PublicUser{}, err
	}

	l := slogx.FromContext(ctx)

	if s.Registrations != nil && req.SourceIP != "" {
		hit, err := s.Registrations.Hit(ctx, req.SourceIP)
		if err != nil {
			return domain.PublicUser{}, fmt.Errorf("count registration: %w", err)
		}
		if hit.Exceeded {
			l.Info("registration rate limited", slog.String("ip", req.SourceIP))
			return domain.PublicUser{}, &RateLimitError{RetryAfter: hit.RetryAfter}
		}
	}

	email := domain.NormalizeEmail(req.Email)
	switch _, err := s.Store.Users().GetUserByEmail(ctx, email); {
	case err == nil:
		return domain.PublicUser{}, ErrEmailTaken
	case !errors.Is(err, store.ErrNotFound):
		return domain.PublicUser{}, fmt.Errorf("lookup user: %w", err)
	}

	roleIDs, err := s.resolveRoles(ctx, email, req.Roles)
	if err != nil {
		return domain.PublicUser{}, err
	}

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Address:      strings.TrimSpace(req.Address),
		RoleIDs:      roleIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.UserAgent != "" || req.SourceIP != "" {
		u.Devices = []domain.Device{{
			UserAgent: req.UserAgent,
			IPAddress: req.SourceIP,
			LastLogin: now,
			CreatedAt: now,
		}}
	}

	err = s.Store.Users().CreateUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.PublicUser{}, ErrEmailTaken
	}
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("create user: %w", err)
	}
	l = l.With(slog.String("user_id", u.ID))

	if err := s.sendVerification(ctx, u); err != nil {
		if derr := s.Store.Users().DeleteUser(ctx, u.ID); derr != nil {
			l.Error("remove user after failed verification email", slog.Any("error", derr))
		}
		return domain.PublicUser{}, err
	}

	l.Info("user registered")
	return publicUser(ctx, s.Store, u)
}

func (s *AuthService) sendVerification(ctx context.Context, u domain.User) error {
	tok, err := s.Tokens.IssueEmailVerification(ctx, u.ID)
	if err != nil {
		return err
	}
	if err := s.Notifier.SendVerification(ctx, u, tok.Value); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// resolveRoles maps role names to ids. No names means the default role,
// when it has been seeded. Privileged roles are refused unless email is
// one of AdminEmails.
func (s *AuthService) resolveRoles(ctx context.Context, email string, names []string) ([]string, error) {
	roles := s.Store.Roles()

	if len(names) == 0 {
		r, err := roles.GetRoleByName(ctx, domain.DefaultRole)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("lookup default role: %w", err)
		}
		return []string{r.ID}, nil
	}

	ids := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		r, err := roles.GetRoleByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, name)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup role %s: %w", name, err)
		}
		if !domain.SelfAssignable(r.Name) && !s.isAdminEmail(email) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotAllowed, r.Name)
		}
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (s *AuthService) isAdminEmail(email string) bool {
	for _, a := range s.AdminEmails {
		if domain.NormalizeEmail(a) == email {
			return true
		}
	}
	return false
}

// VerifyEmail consumes an email verification token. ErrAlreadyVerified is
// returned for a repeat, which callers treat as success.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.Tokens.ValidateEmailVerification(ctx, token)
	if err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	if err := s.Store.Users().MarkEmailVerified(ctx, u.ID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	slogx.FromContext(ctx).Info("email verified", slog.String("user_id", u.ID))
	return nil
}

// ForgotPassword mails either a reset link or a reset code.
func (s *AuthService) ForgotPassword(ctx context.Context, email, method string) error {
	m, err := ParseResetMethod(method)
	if err != nil {
		return err
	}
	v := &ValidationError{}
	checkEmail(v, "email", email)
	if err := v.orNil(); err != nil {
		return err
	}

	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	switch m {
	case ResetByOTP:
		err = s.challenge(ctx, u, mail.PurposePasswordReset)
	case ResetByLink:
		var tok domain.IssuedToken
		tok, err = s.Tokens.IssuePasswordReset(ctx, u.ID)
		if err == nil {
			err = s.Notifier.SendPasswordReset(ctx, u, tok.Value)
		}
	}
	if err != nil {
		return fmt.Errorf("password reset %s: %w", m, err)
	}

	slogx.FromContext(ctx).Info("password reset requested", slog.String("user_id", u.ID), slog.String("method", string(m)))
	return nil
}

// ResetPassword completes a link based reset.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.Tokens.ValidatePasswordReset(ctx, token)
	if err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	v := &ValidationError{}
	checkPassword(v, "newPassword", newPassword)
	if err := v.orNil(); err != nil {
		return err
	}
	return s.setPassword(ctx, u, newPassword)
}

// setPassword stores the new hash, ends the refresh session and sends the
// confirmation in the background.
func (s *AuthService) setPassword(ctx context.Context, u domain.User, password string) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.Tokens.Revoke(ctx, u.ID); err != nil {
		return err
	}

	l := slogx.FromContext(ctx).With(slog.String("user_id", u.ID))
	l.Info("password reset")

	timeout := ttlOr(s.ConfirmTimeout, defaultConfirmTimeout)
	bg := slogx.WithContext(context.WithoutCancel(ctx), l)
	s.background.Go(func() {
		ctx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()
		if err := s.Notifier.SendPasswordResetConfirmation(ctx, u); err != nil {
			l.Error("send password reset confirmation", slog.Any("error", err))
		}
	})
	return nil
}

// VerifyOTP dispatches a verified code to its action. The action and its
// fields are validated before the code is touched.
func (s *AuthService) VerifyOTP(ctx context.Context, req OTPRequest) (OTPResult, error) {
	action, err := ParseOTPAction(req.Action)
	if err != nil {
		return OTPResult{}, err
	}

	v := &ValidationError{}
	switch action {
	case OTPActionLogin:
		checkEmail(v, "email", req.Email)
	case OTPActionResetPassword:
		checkEmail(v, "email", req.Email)
		checkPassword(v, "newPassword", req.NewPassword)
	case OTPActionChangeDevice:
		if req.UserID == "" {
			return OTPResult{}, ErrInvalidToken
		}
	}
	if err := v.orNil(); err != nil {
		return OTPResult{}, err
	}

	l := slogx.FromContext(ctx).With(slog.String("action", string(action)))
	res := OTPResult{Action: action}

	switch action {
	case OTPActionLogin:
		u, err := s.userByEmail(ctx, req.Email)
		if err != nil {
			return OTPResult{}, err
		}
		if u.IsLocked(s.now()) {
			return OTPResult{}, ErrAccountLocked
		}
		if !u.EmailVerified {
			return OTPResult{}, ErrEmailNotVerified
		}
		if err := s.redeemOTP(ctx, u.ID, action.otpPurpose(), req.OTP); err != nil {
			l.Info("otp rejected", slog.String("user_id", u.ID), slog.Any("error", err))
			return OTPResult{}, err
		}
		if err := s.Devices.Remember(ctx, u.ID, req.UserAgent, req.IPAddress); err != nil {
			return OTPResult{}, err
		}
		sess, err := s.completeLogin(ctx, u, req.RememberMe)
		if err != nil {
			return OTPResult{}, err
		}
		res.Session = &sess

	case OTPActionResetPassword:
		u, err := s.userByEmail(ctx, req.Email)
		if err != nil {
			return OTPResult{}, err
		}
		if err := s.redeemOTP(ctx, u.ID, action.otpPurpose(), req.OTP); err != nil {
			l.Info("otp rejected", slog.String("user_id", u.ID), slog.Any("error", err))
			return OTPResult{}, err
		}
		if err := s.setPassword(ctx, u, req.NewPassword); err != nil {
			return OTPResult{}, err
		}

	case OTPActionChangeDevice:
		u, err := s.Store.Users().GetUserByID(ctx, req.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return OTPResult{}, ErrUserNotFound
		}
		if err != nil {
			return OTPResult{}, fmt.Errorf("lookup user: %w", err)
		}
		if err := s.redeemOTP(ctx, u.ID, action.otpPurpose(), req.OTP); err != nil {
			l.Info("otp rejected", slog.String("user_id", u.ID), slog.Any("error", err))
			return OTPResult{}, err
		}
		if err := s.Devices.Remember(ctx, u.ID, req.UserAgent, req.IPAddress); err != nil {
			return OTPResult{}, err
		}
	}

	l.Info("otp verified")
	return res, nil
}

// ResendOTP issues a new device confirmation code to a signed in user. The
// previous code stops working.
func (s *AuthService) ResendOTP(ctx context.Context, userID string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	return s.challenge(ctx, u, mail.PurposeChangeDevice)
}

// Refresh trades the live refresh token for a new access token and rotates
// the refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	userID, err := s.Tokens.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if u.IsLocked(s.now()) {
		return Session{}, ErrAccountLocked
	}
	return s.newSession(ctx, u, true)
}

// Logout ends the refresh session. Devices stay trusted.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.Tokens.Revoke(ctx, userID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("user logged out", slog.String("user_id", userID))
	return nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}
