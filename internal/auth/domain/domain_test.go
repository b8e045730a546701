package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "bob@example.com", domain.NormalizeEmail("  Bob@Example.COM "))
}

func TestUser_IsLocked(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	require.False(t, domain.User{}.IsLocked(now))
	require.True(t, domain.User{Locked: true, LockUntil: &later}.IsLocked(now))
	require.False(t, domain.User{Locked: true, LockUntil: &earlier}.IsLocked(now))
	require.False(t, domain.User{Locked: false, LockUntil: &later}.IsLocked(now))
}

func TestUser_FindDevice(t *testing.T) {
	u := domain.User{Devices: []domain.Device{
		{UserAgent: "ua", IPAddress: "1.1.1.1", Verified: true},
		{UserAgent: "ua", IPAddress: "2.2.2.2"},
	}}

	d, ok := u.FindDevice("ua", "1.1.1.1")
	require.True(t, ok)
	require.True(t, d.Verified)

	_, ok = u.FindDevice("UA", "1.1.1.1")
	require.False(t, ok)
}

func TestUser_PublicHidesSecrets(t *testing.T) {
	u := domain.User{ID: "u1", PasswordHash: "secret", RoleIDs: []string{"r1"}}
	p := u.Public()
	require.Equal(t, "u1", p.ID)
	require.Equal(t, []string{"r1"}, p.RoleIDs)

	p.RoleIDs[0] = "changed"
	require.Equal(t, "r1", u.RoleIDs[0])
}

func TestOTPEntry_Expired(t *testing.T) {
	now := time.Now()
	e := domain.OTPEntry{ExpiresAt: now}
	require.True(t, e.Expired(now))
	require.False(t, e.Expired(now.Add(-time.Nanosecond)))
}

func TestValidRoleName(t *testing.T) {
	require.True(t, domain.ValidRoleName("Livreur"))
	require.False(t, domain.ValidRoleName("admin"))
}
