package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: Requests tokens refill over Window,
// with at most Burst available at once.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Profiles used by the router. Each can be overridden with
// RATELIMIT_<PROFILE>_REQUESTS, _WINDOW_SEC and _BURST.
var (
	// OTPLimit guards endpoints that issue or check one-time codes.
	OTPLimit = RateLimitConfig{Requests: 3, Window: time.Minute, Burst: 3}

	// StrictLimit guards credential endpoints.
	StrictLimit = RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit guards authenticated operations.
	ModerateLimit = RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20}

	// PublicLimit guards public read-only endpoints.
	PublicLimit = RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 1000}
)

func init() {
	OTPLimit = RateLimitFromEnv("OTP", OTPLimit)
	StrictLimit = RateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = RateLimitFromEnv("MODERATE", ModerateLimit)
	PublicLimit = RateLimitFromEnv("PUBLIC", PublicLimit)
}

// RateLimitFromEnv overlays RATELIMIT_{profile}_* variables on def.
// Non-positive or unparsable values are ignored.
func RateLimitFromEnv(profile string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnvInt("RATELIMIT_" + profile + "_REQUESTS"); ok {
		cfg.Requests = n
	}
	if n, ok := positiveEnvInt("RATELIMIT_" + profile + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnvInt("RATELIMIT_" + profile + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnvInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

// KeyExtractor groups requests into buckets. An empty key skips limiting.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor buckets by client IP.
func IPKeyExtractor(r *http.Request) string { return ClientIP(r) }

// UserIDKeyExtractor buckets by authenticated user.
func UserIDKeyExtractor(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

// JSONFieldKeyExtractor buckets by a top-level string field of a JSON body.
// The body is restored so the handler can decode it again. Values are
// lower-cased so "Bob@x" and "bob@x" share a bucket.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[field], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// CompositeKeyExtractor joins the non-empty keys of several extractors.
// When all of them are empty the result is empty.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type bucketSet struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	buckets     map[string]*rate.Limiter
	lastCleanup time.Time
}

func (b *bucketSet) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastCleanup) >= 5*time.Minute {
		// A full bucket has been idle for at least a whole window.
		for k, l := range b.buckets {
			if l.TokensAt(now) >= float64(b.burst) {
				delete(b.buckets, k)
			}
		}
		b.lastCleanup = now
	}

	l, ok := b.buckets[key]
	if !ok {
		l = rate.NewLimiter(b.limit, b.burst)
		b.buckets[key] = l
	}
	return l
}

// RateLimitMiddleware rejects requests with 429 once the bucket for their
// key is empty.
func RateLimitMiddleware(cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	set := &bucketSet{
		limit:       rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		buckets:     make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			limiter := set.get(key, now)
			if limiter.AllowN(now, 1) {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.ReserveN(now, 1)
			retryAfter := max(int(res.DelayFrom(now).Seconds()), 1)
			res.CancelAt(now)

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits by client IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated user, falling back to IP.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, func(r *http.Request) string {
		if id := UserIDKeyExtractor(r); id != "" {
			return "user:" + id
		}
		return "ip:" + ClientIP(r)
	})
}

// RateLimitByIPAndJSONField limits by IP plus a JSON body field, e.g. the
// email of a login attempt.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor("|", IPKeyExtractor, JSONFieldKeyExtractor(field)))
}
