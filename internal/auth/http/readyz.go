package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
	"github.com/aussiebroadwan/bartab-accounts/pkg/httpx"
	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
)

// CacheCheck pings the cache. Nil means there is no cache to check.
type CacheCheck func(ctx context.Context) error

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of database, cache and signer components
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	cacheCheck CacheCheck,
	keys *jwtx.KeySet,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"signer":   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		fail := func(name, msg string) {
			checks[name] = "error: " + msg
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		// Check database connectivity
		if err := st.Ping(ctx); err != nil {
			fail("database", err.Error())
		}

		if cacheCheck != nil {
			checks["cache"] = "ok"
			if err := cacheCheck(ctx); err != nil {
				fail("cache", err.Error())
			}
		}

		// Check if JWT signer/verifier has keys loaded
		if !keys.IsReady() {
			fail("signer", "no keys loaded")
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
