package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewClaims(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := jwtx.NewClaims(jwtx.KindPasswordReset, "u1", "iss", time.Hour, now)

	require.Equal(t, "u1", c.Subject)
	require.Equal(t, "iss", c.Issuer)
	require.Equal(t, jwtx.KindPasswordReset, c.Kind)
	require.Equal(t, now.Add(time.Hour).Unix(), c.ExpiresAtTime().Unix())
	require.NotEmpty(t, c.ID)

	other := jwtx.NewClaims(jwtx.KindPasswordReset, "u1", "iss", time.Hour, now)
	require.NotEqual(t, c.ID, other.ID)
}

func TestClaims_ExpiresAtTimeZero(t *testing.T) {
	require.True(t, jwtx.Claims{}.ExpiresAtTime().IsZero())
}

func TestKeySet_RejectsUnknownShapes(t *testing.T) {
	ks := jwtx.NewKeySet()
	require.False(t, ks.IsReady())

	require.Error(t, ks.Add(jwtx.JWK{Kty: "RSA", Kid: "a"}))
	require.Error(t, ks.Add(jwtx.JWK{Kty: "OKP", Crv: "X25519", Kid: "a"}))
	require.Error(t, ks.Add(jwtx.JWK{Kty: "OKP", Crv: "Ed25519", Kid: "a", X: "AAAA"}))

	_, err := ks.Get("a")
	require.ErrorIs(t, err, jwtx.ErrNoKey)
}
