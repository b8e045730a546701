package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/mail"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://accounts.test"
	testPassword = "Str0ng!Pass"
	testUA       = "Mozilla/5.0 (X11; Linux x86_64)"
	testIP       = "203.0.113.7"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	auth    *AuthService
	roles   *RolesService
	users   *UserService
	tokens  *TokenService
	store   *sqlite.Store
	mr      *miniredis.Miniredis
	outbox  *mail.Outbox
	clock   *clock
	regs    *cache.Counter
	failing *cache.Counter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations(ctx))
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := &clock{t: time.Now().UTC()}

	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		Now:       clk.Now,
	})
	require.NoError(t, err)

	outbox := &mail.Outbox{}
	mailer := mail.NewMailer(outbox, mail.MailerOptions{
		FrontendURL: "https://app.test",
		OTPTTL:      cache.DefaultOTPTTL,
		ResetTTL:    time.Hour,
	})

	tokens := &TokenService{
		Keys:     km,
		Registry: cache.NewRefreshRegistry(rdb),
		Issuer:   testIssuer,
		Now:      clk.Now,
	}
	regs := cache.NewCounter(rdb, "register", 5, time.Hour)
	failing := cache.NewCounter(rdb, "login_fail", 3, 15*time.Minute)

	h := &harness{
		roles:   &RolesService{Store: st, Now: clk.Now},
		users:   &UserService{Store: st},
		tokens:  tokens,
		store:   st,
		mr:      mr,
		outbox:  outbox,
		clock:   clk,
		regs:    regs,
		failing: failing,
	}
	h.auth = &AuthService{
		Store:            st,
		Devices:          &DeviceRegistry{Users: st.Users(), Now: clk.Now},
		OTP:              cache.NewOTPLedger(rdb, cache.DefaultOTPTTL).WithClock(clk.Now),
		Tokens:           tokens,
		Notifier:         mailer,
		Registrations:    regs,
		FailedLogins:     failing,
		LockoutThreshold: 3,
		LockoutDuration:  10 * time.Minute,
		Now:              clk.Now,
	}

	_, err = h.roles.Seed(ctx)
	require.NoError(t, err)
	return h
}

func registerReq(email string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Alice",
		LastName:  "Martin",
		Email:     email,
		Password:  testPassword,
		Phone:     "0612345678",
		Address:   "1 rue de la Paix",
		SourceIP:  testIP,
		UserAgent: testUA,
	}
}

var (
	codeRe  = regexp.MustCompile(`code is: (\d{6})`)
	tokenRe = regexp.MustCompile(`/(?:verify-email|reset-password)/(\S+)`)
)

// lastCode returns the code in the newest email to addr.
func (h *harness) lastCode(t *testing.T, addr string) string {
	t.Helper()
	msg, ok := h.outbox.Last(addr)
	require.True(t, ok, "no email for %s", addr)
	m := codeRe.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no code in %q", msg.Subject)
	return m[1]
}

// lastToken returns the token in the newest link emailed to addr.
func (h *harness) lastToken(t *testing.T, addr string) string {
	t.Helper()
	msg, ok := h.outbox.Last(addr)
	require.True(t, ok, "no email for %s", addr)
	m := tokenRe.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "no link in %q", msg.Subject)
	return strings.TrimSpace(m[1])
}

// verifiedUser registers and verifies an account. The registering device
// is known but not trusted.
func (h *harness) verifiedUser(t *testing.T, email string) domain.PublicUser {
	t.Helper()
	ctx := context.Background()

	u, err := h.auth.Register(ctx, registerReq(email))
	require.NoError(t, err)
	require.NoError(t, h.auth.VerifyEmail(ctx, h.lastToken(t, u.Email)))
	return u
}

// trustedUser also completes one OTP login from testUA/testIP.
func (h *harness) trustedUser(t *testing.T, email string) domain.PublicUser {
	t.Helper()
	ctx := context.Background()
	u := h.verifiedUser(t, email)

	res, err := h.auth.Login(ctx, LoginRequest{Email: email, Password: testPassword, UserAgent: testUA, IPAddress: testIP})
	require.NoError(t, err)
	require.True(t, res.Challenge)

	res, err = h.auth.Login(ctx, LoginRequest{
		Email: email, Password: testPassword, OTP: h.lastCode(t, u.Email),
		UserAgent: testUA, IPAddress: testIP,
	})
	require.NoError(t, err)
	require.False(t, res.Challenge)
	return u
}
