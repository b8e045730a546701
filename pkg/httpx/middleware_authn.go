package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/slogx"
)

// BearerToken extracts the raw token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[7:])
	return raw, raw != ""
}

// AuthnMiddleware requires a valid access token. Refresh, reset and email
// verification tokens are signed by the same key and are rejected here.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(raw)
			if err == nil {
				err = claims.Expect(jwtx.KindAccess)
			}
			if err != nil {
				slogx.FromContext(ctx).Debug("bearer token rejected", "err", err)
				writeBearerError(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// RFC 6750 style challenge with a JSON body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized", desc)
}
