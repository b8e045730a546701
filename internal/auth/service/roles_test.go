package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestRolesService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	roles, err := h.roles.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, roles, len(domain.RoleNames))

	created, err := h.roles.Seed(ctx)
	require.NoError(t, err)
	require.Zero(t, created, "seed is idempotent")

	_, err = h.roles.Create(ctx, "Client")
	require.ErrorIs(t, err, ErrRoleExists)
	_, err = h.roles.Create(ctx, "Wizard")
	require.ErrorIs(t, err, ErrInvalidRoleName)

	var livreur domain.Role
	for _, r := range roles {
		if r.Name == domain.RoleLivreur {
			livreur = r
		}
	}
	require.NotEmpty(t, livreur.ID)

	t.Run("rename", func(t *testing.T) {
		_, err := h.roles.Rename(ctx, livreur.ID, "Nope")
		require.ErrorIs(t, err, ErrInvalidRoleName)
		_, err = h.roles.Rename(ctx, livreur.ID, domain.RoleAdmin)
		require.ErrorIs(t, err, ErrRoleExists)
		_, err = h.roles.Rename(ctx, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", domain.RoleLivreur)
		require.ErrorIs(t, err, ErrRoleNotFound)
	})

	t.Run("delete detaches users", func(t *testing.T) {
		req := registerReq("victor@example.com")
		req.Roles = []string{domain.RoleLivreur}
		u, err := h.auth.Register(ctx, req)
		require.NoError(t, err)

		require.NoError(t, h.roles.Delete(ctx, livreur.ID))
		require.ErrorIs(t, h.roles.Delete(ctx, livreur.ID), ErrRoleNotFound)
		_, err = h.roles.GetRoleByID(ctx, livreur.ID)
		require.ErrorIs(t, err, ErrRoleNotFound)

		p, err := h.users.Profile(ctx, u.ID)
		require.NoError(t, err)
		require.Empty(t, p.Roles)

		r, err := h.roles.Create(ctx, domain.RoleLivreur)
		require.NoError(t, err)
		require.Equal(t, domain.RoleLivreur, r.Name)
	})
}
