package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	for _, size := range []int{TokenSize128, TokenSize256, 24} {
		token, err := GenerateToken(size)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		require.Len(t, raw, size)

		other, err := GenerateToken(size)
		require.NoError(t, err)
		require.NotEqual(t, token, other)
	}

	_, err := GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	a := FingerprintToken("token-a")
	require.Equal(t, a, FingerprintToken("token-a"))
	require.NotEqual(t, a, FingerprintToken("token-b"))
	require.Len(t, a, 43)
}

func TestEqualTokens(t *testing.T) {
	require.True(t, EqualTokens("abc", "abc"))
	require.False(t, EqualTokens("abc", "abd"))
	require.False(t, EqualTokens("abc", "abcd"))
}

func TestRandomCode(t *testing.T) {
	seen := make(map[int64]struct{})
	for range 200 {
		n, err := RandomCode(6)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(0))
		require.Less(t, n, int64(1_000_000))
		seen[n] = struct{}{}
	}
	// 200 draws from a million values colliding more than a handful of times
	// would mean the source is broken.
	require.Greater(t, len(seen), 190)

	_, err := RandomCode(0)
	require.Error(t, err)
	_, err = RandomCode(19)
	require.Error(t, err)
}
