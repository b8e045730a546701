package jwtx_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, alg string) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: alg, Issuer: "bartab-test"})
	require.NoError(t, err)
	return km
}

func TestKeyManager_RoundTrip(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			km := newManager(t, alg)
			require.True(t, km.IsReady())
			require.Equal(t, alg, km.Algorithm())

			claims := jwtx.NewClaims(jwtx.KindAccess, "user-1", "bartab-test", time.Minute, time.Now())
			claims.Roles = []string{"Admin"}
			claims.Email = "a@b.co"

			tok, err := km.Sign(claims)
			require.NoError(t, err)

			got, err := km.Verify(tok)
			require.NoError(t, err)
			require.Equal(t, "user-1", got.Subject)
			require.Equal(t, jwtx.KindAccess, got.Kind)
			require.NoError(t, got.Expect(jwtx.KindAccess))
			require.ErrorIs(t, got.Expect(jwtx.KindRefresh), jwtx.ErrWrongKind)
			require.True(t, got.HasRole("Admin"))
			require.Equal(t, "a@b.co", got.Email)

			jwks := km.KeySet.PublicJWKS()
			require.Len(t, jwks.Keys, 1)
			require.Equal(t, km.Signer().KID(), jwks.Keys[0].Kid)
			require.Equal(t, alg, jwks.Keys[0].Alg)
		})
	}
}

func TestKeyManager_Rejects(t *testing.T) {
	km := newManager(t, jwtx.AlgorithmEdDSA)
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		tok, err := km.Sign(jwtx.NewClaims(jwtx.KindAccess, "u", "bartab-test", time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = km.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("issuer", func(t *testing.T) {
		tok, err := km.Sign(jwtx.NewClaims(jwtx.KindAccess, "u", "someone-else", time.Minute, now))
		require.NoError(t, err)
		_, err = km.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("tampered", func(t *testing.T) {
		tok, err := km.Sign(jwtx.NewClaims(jwtx.KindAccess, "u", "bartab-test", time.Minute, now))
		require.NoError(t, err)
		parts := strings.Split(tok, ".")
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, err = km.Verify(parts[0] + "." + parts[1] + "." + string(sig))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := km.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("foreign key", func(t *testing.T) {
		other := newManager(t, jwtx.AlgorithmEdDSA)
		tok, err := other.Sign(jwtx.NewClaims(jwtx.KindAccess, "u", "bartab-test", time.Minute, now))
		require.NoError(t, err)
		_, err = km.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("algorithm", func(t *testing.T) {
		es := newManager(t, jwtx.AlgorithmES256)
		tok, err := es.Sign(jwtx.NewClaims(jwtx.KindAccess, "u", "bartab-test", time.Minute, now))
		require.NoError(t, err)
		_, err = km.Verify(tok)
		require.Error(t, err)
	})
}

func TestKeyManager_InjectedClock(t *testing.T) {
	now := time.Now()
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "bartab-test",
		Now:       func() time.Time { return now.Add(2 * time.Hour) },
	})
	require.NoError(t, err)

	tok, err := km.Sign(jwtx.NewClaims(jwtx.KindRefresh, "u", "bartab-test", time.Hour, now))
	require.NoError(t, err)
	_, err = km.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestKeyManager_KeyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "keys", "signing.pem")
	opts := jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmES256, Issuer: "bartab-test", KeyFile: file}

	first, err := jwtx.NewKeyManager(opts)
	require.NoError(t, err)

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := first.Sign(jwtx.NewClaims(jwtx.KindAccess, "u", "bartab-test", time.Minute, time.Now()))
	require.NoError(t, err)

	// A restart with the same file keeps the kid and accepts old tokens.
	second, err := jwtx.NewKeyManager(opts)
	require.NoError(t, err)
	require.Equal(t, first.Signer().KID(), second.Signer().KID())
	_, err = second.Verify(tok)
	require.NoError(t, err)

	opts.Algorithm = jwtx.AlgorithmEdDSA
	_, err = jwtx.NewKeyManager(opts)
	require.Error(t, err)
}

func TestNewKeyManager_Options(t *testing.T) {
	_, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA})
	require.Error(t, err)

	_, err = jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: "RS256", Issuer: "x"})
	require.Error(t, err)
}
