package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"github.com/aussiebroadwan/bartab-accounts/pkg/idx"
)

type RolesService struct {
	Store store.Store

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *RolesService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetRoleByID fetches a role by its ID.
func (s *RolesService) GetRoleByID(ctx context.Context, roleID string) (domain.Role, error) {
	r, err := s.Store.Roles().GetRoleByID(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, ErrRoleNotFound
	}
	return r, err
}

// ListAll returns all roles in the system.
func (s *RolesService) ListAll(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}

// Create adds a role. Only the known role names are accepted.
func (s *RolesService) Create(ctx context.Context, name string) (domain.Role, error) {
	name = strings.TrimSpace(name)
	if !domain.ValidRoleName(name) {
		return domain.Role{}, ErrInvalidRoleName
	}

	now := s.now()
	r := domain.Role{ID: idx.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	err := s.Store.Roles().CreateRole(ctx, r)
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.Role{}, ErrRoleExists
	}
	if err != nil {
		return domain.Role{}, fmt.Errorf("create role: %w", err)
	}
	return r, nil
}

// Rename changes the name of a role and returns the updated record.
func (s *RolesService) Rename(ctx context.Context, roleID, name string) (domain.Role, error) {
	name = strings.TrimSpace(name)
	if !domain.ValidRoleName(name) {
		return domain.Role{}, ErrInvalidRoleName
	}

	switch err := s.Store.Roles().RenameRole(ctx, roleID, name); {
	case errors.Is(err, store.ErrNotFound):
		return domain.Role{}, ErrRoleNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.Role{}, ErrRoleExists
	case err != nil:
		return domain.Role{}, fmt.Errorf("rename role: %w", err)
	}
	return s.GetRoleByID(ctx, roleID)
}

// Delete removes a role and detaches it from its users.
func (s *RolesService) Delete(ctx context.Context, roleID string) error {
	err := s.Store.Roles().DeleteRole(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRoleNotFound
	}
	return err
}

// Seed creates every known role that is missing. Safe to call on each boot.
func (s *RolesService) Seed(ctx context.Context) (created int, err error) {
	for _, name := range domain.RoleNames {
		_, err := s.Create(ctx, name)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrRoleExists):
		default:
			return created, fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return created, nil
}

// roleNames resolves role ids to names, skipping ids that no longer exist.
func roleNames(ctx context.Context, roles store.Roles, ids []string) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		r, err := roles.GetRoleByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve role %s: %w", id, err)
		}
		names = append(names, r.Name)
	}
	return names, nil
}
