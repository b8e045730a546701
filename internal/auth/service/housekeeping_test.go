package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeeping_Cleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	u := h.trustedUser(t, "wendy@example.com")
	users := h.store.Users()

	old := h.clock.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, users.UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "old", IPAddress: "192.0.2.1", LastLogin: old, CreatedAt: old}))
	require.NoError(t, users.UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "old-trusted", IPAddress: "192.0.2.2", Verified: true, LastLogin: old, CreatedAt: old}))
	require.NoError(t, users.LockUser(ctx, u.ID, h.clock.Now().Add(-time.Minute)))

	hk := NewHousekeepingService(h.store, slogx.Discard(), time.Hour, 30*24*time.Hour)
	hk.Now = h.clock.Now
	hk.cleanup(ctx)

	stored, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, stored.Locked)

	_, ok := stored.FindDevice("old", "192.0.2.1")
	require.False(t, ok, "stale unverified device is pruned")
	_, ok = stored.FindDevice("old-trusted", "192.0.2.2")
	require.True(t, ok, "verified devices are kept")
	_, ok = stored.FindDevice(testUA, testIP)
	require.True(t, ok)
}

func TestHousekeeping_StartStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	hk := NewHousekeepingService(h.store, slogx.Discard(), 0, 0)
	require.Equal(t, time.Hour, hk.Interval)
	require.Equal(t, DefaultDeviceRetention, hk.DeviceRetention)

	hk.Start()
	hk.Stop()
}
