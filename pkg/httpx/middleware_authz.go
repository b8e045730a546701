package httpx

import (
	"net/http"
	"slices"
	"strings"
)

// RequireRole lets the request through when the caller holds at least one
// of the named roles. It must run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, have := range rolesFromCtx(r.Context()) {
				if slices.Contains(roles, have) {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(roles, " ")+`"`)
			WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}
