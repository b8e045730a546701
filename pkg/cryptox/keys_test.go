package cryptox

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseKeys(t *testing.T) {
	t.Run("ed25519", func(t *testing.T) {
		pemKey, err := GenerateEd25519Key()
		require.NoError(t, err)

		key, err := ParsePrivateKey(pemKey)
		require.NoError(t, err)
		require.IsType(t, ed25519.PrivateKey{}, key)
	})

	t.Run("p256", func(t *testing.T) {
		pemKey, err := GenerateES256Key()
		require.NoError(t, err)

		key, err := ParsePrivateKey(pemKey)
		require.NoError(t, err)
		require.IsType(t, &ecdsa.PrivateKey{}, key)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParsePrivateKey([]byte("not pem"))
		require.Error(t, err)
	})
}
