package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoints verifies liveness and readiness, including the cache check.
func TestHealthEndpoints(t *testing.T) {
	s := startStack(t, stackOptions{env: relaxedLimits})

	health, err := s.Client.Livez(t.Context())
	assertHealthy(t, health, err)

	health, err = s.Client.Readyz(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, "ok", health.Checks["database"])
	require.Equal(t, "ok", health.Checks["cache"])
	require.Equal(t, "ok", health.Checks["signer"])
}

// TestJWKSVerifiesAccessToken checks that an access token issued by the
// service verifies against the published key set.
func TestJWKSVerifiesAccessToken(t *testing.T) {
	s := startStack(t, stackOptions{env: relaxedLimits})
	res := s.onboard(t, "jwks@example.com", false)

	jwks, err := s.Client.JWKS(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys, "JWKS should contain at least one key")

	keys := jwtx.NewKeySet()
	for _, k := range jwks.Keys {
		require.NoError(t, keys.Add(k))
	}
	claims, err := jwtx.NewVerifier(keys, jwtx.AlgorithmEdDSA, jwtx.VerifyOptions{Issuer: testIssuer}).
		Verify(res.AccessToken)
	require.NoError(t, err)
	require.NoError(t, claims.Expect(jwtx.KindAccess))
	require.Equal(t, res.User.ID, claims.Subject)
}
