package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
)

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// Profile is the public view of a user with role names filled in.
func (s *UserService) Profile(ctx context.Context, userID string) (domain.PublicUser, error) {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return publicUser(ctx, s.Store, u)
}

func publicUser(ctx context.Context, st store.Store, u domain.User) (domain.PublicUser, error) {
	p := u.Public()
	names, err := roleNames(ctx, st.Roles(), u.RoleIDs)
	if err != nil {
		return domain.PublicUser{}, err
	}
	p.Roles = names
	return p, nil
}
