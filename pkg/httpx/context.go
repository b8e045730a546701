package httpx

import (
	"context"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyRoles  ctxKey = "roles"
	CtxKeyClaims ctxKey = "claims"
)

// WithClaims stores verified access token claims on the context.
func WithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyRoles, c.Roles)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// UserIDFromContext returns the authenticated subject, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

// ClaimsFromContext returns the full access token claims, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

func rolesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyRoles).([]string); ok {
		return v
	}
	return nil
}
