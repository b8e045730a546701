package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/redis/go-redis/v9"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 5 * time.Minute

// otpGrace keeps an entry in Redis past its expiry so Verify can still
// report ErrOTPExpired instead of ErrOTPNotFound.
const otpGrace = time.Minute

var (
	ErrOTPNotFound = errors.New("cache: no pending otp")
	ErrOTPExpired  = errors.New("cache: otp expired")
	ErrOTPMismatch = errors.New("cache: otp mismatch")
	ErrOTPPurpose  = errors.New("cache: otp issued for another purpose")
)

// OTPLedger keeps at most one live code per owner at otp:<owner>.
type OTPLedger struct {
	rdb    *redis.Client
	ttl    time.Duration
	now    func() time.Time
	digits otp.Digits
}

func NewOTPLedger(rdb *redis.Client, ttl time.Duration) *OTPLedger {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPLedger{rdb: rdb, ttl: ttl, now: time.Now, digits: otp.DigitsSix}
}

// WithClock replaces the clock used for expiry checks.
func (l *OTPLedger) WithClock(now func() time.Time) *OTPLedger {
	l.now = now
	return l
}

// TTL is the lifetime of an issued code.
func (l *OTPLedger) TTL() time.Duration { return l.ttl }

func otpKey(ownerID string) string { return "otp:" + ownerID }

// Issue generates a fresh code for purpose and overwrites any previous one.
func (l *OTPLedger) Issue(ctx context.Context, ownerID, purpose string) (string, error) {
	n, err := cryptox.RandomCode(l.digits.Length())
	if err != nil {
		return "", fmt.Errorf("cache: generate otp: %w", err)
	}

	now := l.now().UTC()
	entry := domain.OTPEntry{
		OwnerID:   ownerID,
		Purpose:   purpose,
		Code:      l.digits.Format(int32(n)),
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	if err := l.rdb.Set(ctx, otpKey(ownerID), data, l.ttl+otpGrace).Err(); err != nil {
		return "", fmt.Errorf("cache: store otp: %w", err)
	}
	return entry.Code, nil
}

// Verify consumes the code when it matches and was issued for purpose. A
// wrong code or purpose leaves the entry in place; an expired one is
// purged. The read and the delete share one WATCH transaction so a code
// can only be redeemed once.
func (l *OTPLedger) Verify(ctx context.Context, ownerID, purpose, submitted string) error {
	key := otpKey(ownerID)

	err := l.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrOTPNotFound
		}
		if err != nil {
			return err
		}

		var entry domain.OTPEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("cache: decode otp: %w", err)
		}

		if entry.Expired(l.now()) {
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			}); err != nil {
				return err
			}
			return ErrOTPExpired
		}

		if entry.Purpose != purpose {
			return ErrOTPPurpose
		}
		if !cryptox.EqualTokens(entry.Code, submitted) {
			return ErrOTPMismatch
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	// Someone else consumed or replaced the code between our read and delete.
	if errors.Is(err, redis.TxFailedErr) {
		return ErrOTPNotFound
	}
	return err
}

// Purge removes any pending code.
func (l *OTPLedger) Purge(ctx context.Context, ownerID string) error {
	return l.rdb.Del(ctx, otpKey(ownerID)).Err()
}
