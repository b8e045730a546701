// Package storetest holds the behaviour every store driver must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"github.com/aussiebroadwan/bartab-accounts/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a freshly migrated, empty store. Cleanup is registered by
// the factory.
type Factory func(t *testing.T) store.Store

// Run exercises the store.Store contract against a driver.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"Users_CreateAndGet", testUsersCreateAndGet},
		{"Users_DuplicateEmail", testUsersDuplicateEmail},
		{"Users_UpsertDevice", testUsersUpsertDevice},
		{"Users_PruneDevices", testUsersPruneDevices},
		{"Users_Mutations", testUsersMutations},
		{"Roles_CRUD", testRolesCRUD},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func newUser(email string, roleIDs ...string) domain.User {
	return domain.User{
		ID:           idx.New().String(),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        email,
		PasswordHash: "$argon2id$stub",
		Phone:        "0123456789",
		Address:      "1 Analytical St",
		RoleIDs:      roleIDs,
	}
}

func testUsersCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	role := domain.Role{ID: idx.New().String(), Name: domain.RoleClient}
	require.NoError(t, s.Roles().CreateRole(ctx, role))

	u := newUser("ada@example.com", role.ID)
	u.Devices = []domain.Device{{UserAgent: "ua", IPAddress: "10.0.0.1"}}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, []string{role.ID}, got.RoleIDs)
	require.Len(t, got.Devices, 1)
	require.False(t, got.Devices[0].Verified)
	require.False(t, got.EmailVerified)
	require.Nil(t, got.LastLogin)
	require.False(t, got.CreatedAt.IsZero())

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, got.Email, byID.Email)

	_, err = s.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUsersDuplicateEmail(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Users().CreateUser(ctx, newUser("dup@example.com")))

	other := newUser("dup@example.com")
	other.FirstName = "Someone"
	other.Phone = "9999999999"
	require.ErrorIs(t, s.Users().CreateUser(ctx, other), store.ErrAlreadyExists)

	// The failed insert leaves nothing behind.
	_, err := s.Users().GetUserByID(ctx, other.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUsersUpsertDevice(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("dev@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	t0 := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	t1 := t0.Add(30 * time.Minute)

	// First sighting, unverified.
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "ua", IPAddress: "1.1.1.1", LastLogin: t0}))
	// Another device.
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "ua", IPAddress: "2.2.2.2", LastLogin: t0}))
	// Verify the first one in place.
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "ua", IPAddress: "1.1.1.1", Verified: true, LastLogin: t1}))
	// An unverified sighting must not downgrade it.
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "ua", IPAddress: "1.1.1.1", Verified: false, LastLogin: t1}))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.Devices, 2)
	require.Equal(t, "1.1.1.1", got.Devices[0].IPAddress)
	require.True(t, got.Devices[0].Verified)
	require.True(t, got.Devices[0].LastLogin.Equal(t1))
	require.Equal(t, "2.2.2.2", got.Devices[1].IPAddress)
	require.False(t, got.Devices[1].Verified)

	err = s.Users().UpsertDevice(ctx, "missing", domain.Device{UserAgent: "ua", IPAddress: "1.1.1.1"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUsersPruneDevices(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("prune@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "a", IPAddress: "1", LastLogin: old}))
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "b", IPAddress: "1", LastLogin: old, Verified: true}))
	require.NoError(t, s.Users().UpsertDevice(ctx, u.ID, domain.Device{UserAgent: "c", IPAddress: "1", LastLogin: time.Now()}))

	n, err := s.Users().PruneDevices(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.Devices, 2)
	require.Equal(t, "b", got.Devices[0].UserAgent)
	require.Equal(t, "c", got.Devices[1].UserAgent)
}

func testUsersMutations(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := newUser("mut@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "$argon2id$new"))
	require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID))

	until := time.Now().Add(time.Minute)
	require.NoError(t, s.Users().LockUser(ctx, u.ID, until))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "$argon2id$new", got.PasswordHash)
	require.True(t, got.EmailVerified)
	require.True(t, got.IsLocked(time.Now()))

	// Not yet expired.
	n, err := s.Users().UnlockExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.Users().UnlockExpired(ctx, until.Add(time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, s.Users().LockUser(ctx, u.ID, until))
	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Users().TouchLastLogin(ctx, u.ID, at))

	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.Locked)
	require.Nil(t, got.LockUntil)
	require.NotNil(t, got.LastLogin)
	require.True(t, got.LastLogin.Equal(at))

	require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	require.ErrorIs(t, s.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)
}

func testRolesCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	admin := domain.Role{ID: idx.New().String(), Name: domain.RoleAdmin}
	client := domain.Role{ID: idx.New().String(), Name: domain.RoleClient}
	require.NoError(t, s.Roles().CreateRole(ctx, client))
	require.NoError(t, s.Roles().CreateRole(ctx, admin))

	require.ErrorIs(t, s.Roles().CreateRole(ctx, domain.Role{ID: idx.New().String(), Name: domain.RoleAdmin}), store.ErrAlreadyExists)

	all, err := s.Roles().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, domain.RoleAdmin, all[0].Name)

	byName, err := s.Roles().GetRoleByName(ctx, domain.RoleClient)
	require.NoError(t, err)
	require.Equal(t, client.ID, byName.ID)

	require.ErrorIs(t, s.Roles().RenameRole(ctx, client.ID, domain.RoleAdmin), store.ErrAlreadyExists)
	require.NoError(t, s.Roles().RenameRole(ctx, client.ID, domain.RoleLivreur))
	require.ErrorIs(t, s.Roles().RenameRole(ctx, "missing", domain.RoleLivreur), store.ErrNotFound)

	got, err := s.Roles().GetRoleByID(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleLivreur, got.Name)

	u := newUser("roles@example.com", admin.ID, client.ID)
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Roles().DeleteRole(ctx, admin.ID))
	require.ErrorIs(t, s.Roles().DeleteRole(ctx, admin.ID), store.ErrNotFound)

	gotUser, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{client.ID}, gotUser.RoleIDs)
}
