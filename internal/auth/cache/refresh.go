package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

// RefreshRegistry remembers the fingerprint of the one live refresh token
// per user at refresh:<user>. Storing a new token replaces the old one.
type RefreshRegistry struct {
	rdb *redis.Client
}

func NewRefreshRegistry(rdb *redis.Client) *RefreshRegistry {
	return &RefreshRegistry{rdb: rdb}
}

func refreshKey(userID string) string { return "refresh:" + userID }

// Store records token as the live refresh token for ttl.
func (r *RefreshRegistry) Store(ctx context.Context, userID, token string, ttl time.Duration) error {
	return r.rdb.Set(ctx, refreshKey(userID), cryptox.FingerprintToken(token), ttl).Err()
}

// Matches reports whether token is the live refresh token of userID.
func (r *RefreshRegistry) Matches(ctx context.Context, userID, token string) (bool, error) {
	fp, err := r.rdb.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cryptox.EqualTokens(fp, cryptox.FingerprintToken(token)), nil
}

// Revoke forgets the live refresh token, if any.
func (r *RefreshRegistry) Revoke(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, refreshKey(userID)).Err()
}
