package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

const purpose = "login"

func TestConnect(t *testing.T) {
	mr, _ := newTestRedis(t)

	rdb, err := cache.Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	_, err = cache.Connect(context.Background(), "not a url")
	require.Error(t, err)
}

func TestOTPLedger_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	l := cache.NewOTPLedger(rdb, 5*time.Minute)

	code, err := l.Issue(ctx, "user-1", purpose)
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.Regexp(t, `^[0-9]{6}$`, code)

	require.True(t, mr.Exists("otp:user-1"))
	require.Equal(t, 6*time.Minute, mr.TTL("otp:user-1"))

	require.NoError(t, l.Verify(ctx, "user-1", purpose, code))

	// Replay finds nothing.
	require.ErrorIs(t, l.Verify(ctx, "user-1", purpose, code), cache.ErrOTPNotFound)
}

func TestOTPLedger_MismatchKeepsCode(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	l := cache.NewOTPLedger(rdb, time.Minute)

	code, err := l.Issue(ctx, "u", purpose)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	require.ErrorIs(t, l.Verify(ctx, "u", purpose, wrong), cache.ErrOTPMismatch)
	require.NoError(t, l.Verify(ctx, "u", purpose, code))
}

func TestOTPLedger_ReissueInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	l := cache.NewOTPLedger(rdb, time.Minute)

	first, err := l.Issue(ctx, "u", purpose)
	require.NoError(t, err)

	var second string
	for {
		second, err = l.Issue(ctx, "u", purpose)
		require.NoError(t, err)
		if second != first {
			break
		}
	}

	require.Len(t, mr.Keys(), 1)
	require.ErrorIs(t, l.Verify(ctx, "u", purpose, first), cache.ErrOTPMismatch)
	require.NoError(t, l.Verify(ctx, "u", purpose, second))
}

func TestOTPLedger_Expiry(t *testing.T) {
	ctx := context.Background()

	t.Run("clock past expiry", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		now := time.Now()
		l := cache.NewOTPLedger(rdb, time.Minute).WithClock(func() time.Time { return now })

		code, err := l.Issue(ctx, "u", purpose)
		require.NoError(t, err)

		now = now.Add(time.Minute)
		require.ErrorIs(t, l.Verify(ctx, "u", purpose, code), cache.ErrOTPExpired)
		require.False(t, mr.Exists("otp:u"))
	})

	t.Run("key outlives expiry", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		now := time.Now()
		l := cache.NewOTPLedger(rdb, time.Minute).WithClock(func() time.Time { return now })

		code, err := l.Issue(ctx, "u", purpose)
		require.NoError(t, err)

		now = now.Add(time.Minute + time.Second)
		mr.FastForward(time.Minute + time.Second)
		require.True(t, mr.Exists("otp:u"))
		require.ErrorIs(t, l.Verify(ctx, "u", purpose, code), cache.ErrOTPExpired)
	})

	t.Run("gone after grace", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		l := cache.NewOTPLedger(rdb, time.Minute)

		code, err := l.Issue(ctx, "u", purpose)
		require.NoError(t, err)

		mr.FastForward(3 * time.Minute)
		require.ErrorIs(t, l.Verify(ctx, "u", purpose, code), cache.ErrOTPNotFound)
	})
}

func TestOTPLedger_PurposeMismatchKeepsCode(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	l := cache.NewOTPLedger(rdb, time.Minute)

	code, err := l.Issue(ctx, "u", "password_reset")
	require.NoError(t, err)

	require.ErrorIs(t, l.Verify(ctx, "u", "login", code), cache.ErrOTPPurpose)
	require.NoError(t, l.Verify(ctx, "u", "password_reset", code))
}

func TestOTPLedger_ConcurrentRedeemOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	l := cache.NewOTPLedger(rdb, time.Minute)

	code, err := l.Issue(ctx, "u", purpose)
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Verify(ctx, "u", purpose, code) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestOTPLedger_Purge(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	l := cache.NewOTPLedger(rdb, time.Minute)

	code, err := l.Issue(ctx, "u", purpose)
	require.NoError(t, err)
	require.NoError(t, l.Purge(ctx, "u"))
	require.ErrorIs(t, l.Verify(ctx, "u", purpose, code), cache.ErrOTPNotFound)
}

func TestRefreshRegistry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	r := cache.NewRefreshRegistry(rdb)

	ok, err := r.Matches(ctx, "u", "tok-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Store(ctx, "u", "tok-1", time.Hour))
	require.Equal(t, time.Hour, mr.TTL("refresh:u"))

	// The raw token is never stored.
	raw, err := mr.Get("refresh:u")
	require.NoError(t, err)
	require.NotEqual(t, "tok-1", raw)

	ok, err = r.Matches(ctx, "u", "tok-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.Store(ctx, "u", "tok-2", time.Hour))
	ok, err = r.Matches(ctx, "u", "tok-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Revoke(ctx, "u"))
	ok, err = r.Matches(ctx, "u", "tok-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCounter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := cache.NewCounter(rdb, "register", 2, time.Hour)

	for i := 1; i <= 2; i++ {
		hit, err := c.Hit(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.EqualValues(t, i, hit.Count)
		require.False(t, hit.Exceeded)
	}
	require.Equal(t, time.Hour, mr.TTL("register:10.0.0.1"))

	// Later hits do not extend the window.
	mr.FastForward(30 * time.Minute)
	hit, err := c.Hit(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, hit.Exceeded)
	require.Equal(t, 30*time.Minute, hit.RetryAfter)

	// Other keys are independent.
	hit, err = c.Hit(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.False(t, hit.Exceeded)

	mr.FastForward(31 * time.Minute)
	hit, err = c.Hit(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.EqualValues(t, 1, hit.Count)

	require.NoError(t, c.Reset(ctx, "10.0.0.1"))
	require.False(t, mr.Exists("register:10.0.0.1"))
}

func TestCounter_RepairsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := cache.NewCounter(rdb, "login_fail", 1, time.Minute)

	require.NoError(t, mr.Set("login_fail:u", "5"))

	hit, err := c.Hit(ctx, "u")
	require.NoError(t, err)
	require.True(t, hit.Exceeded)
	require.Equal(t, time.Minute, hit.RetryAfter)
	require.Equal(t, time.Minute, mr.TTL("login_fail:u"))
}
