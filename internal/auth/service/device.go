package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
)

// DeviceRegistry decides which (user agent, IP) pairs may skip the OTP
// challenge. Writes go through the store's atomic upsert.
type DeviceRegistry struct {
	Users store.Users

	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *DeviceRegistry) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Trusted reports whether u has a verified device with exactly this key.
func (r *DeviceRegistry) Trusted(u domain.User, userAgent, ip string) bool {
	d, ok := u.FindDevice(userAgent, ip)
	return ok && d.Verified
}

// IsTrusted loads the user and checks its devices.
func (r *DeviceRegistry) IsTrusted(ctx context.Context, userID, userAgent, ip string) (bool, error) {
	u, err := r.Users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, err
	}
	return r.Trusted(u, userAgent, ip), nil
}

// Remember marks the device verified and stamps its last login.
func (r *DeviceRegistry) Remember(ctx context.Context, userID, userAgent, ip string) error {
	return r.upsert(ctx, userID, userAgent, ip, true)
}

// Observe records a sighting without granting trust. An already verified
// device stays verified.
func (r *DeviceRegistry) Observe(ctx context.Context, userID, userAgent, ip string) error {
	return r.upsert(ctx, userID, userAgent, ip, false)
}

func (r *DeviceRegistry) upsert(ctx context.Context, userID, userAgent, ip string, verified bool) error {
	now := r.now()
	err := r.Users.UpsertDevice(ctx, userID, domain.Device{
		UserAgent: userAgent,
		IPAddress: ip,
		Verified:  verified,
		LastLogin: now,
		CreatedAt: now,
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}
