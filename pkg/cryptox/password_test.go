package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox")
	if err != nil {
		panic(err)
	}
	if err := LoadPepper(filepath.Join(dir, "pepper")); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"unicode password", "пароль🔒密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
			require.Len(t, strings.Split(hash, "$"), 6)

			require.NoError(t, VerifyPassword(tt.password, hash))
			require.ErrorIs(t, VerifyPassword(tt.password+"x", hash), ErrPasswordMismatch)
			require.False(t, NeedsRehash(hash))
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a, err := HashPassword("Secret1!")
	require.NoError(t, err)
	b, err := HashPassword("Secret1!")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPassword_Bcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy1!"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("Legacy1!", string(legacy)))
	require.ErrorIs(t, VerifyPassword("legacy1!", string(legacy)), ErrPasswordMismatch)
	require.True(t, NeedsRehash(string(legacy)))
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1,t=1,p=1$onlysalt",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
	} {
		err := VerifyPassword("whatever", h)
		require.ErrorIs(t, err, ErrUnsupportedHash, h)
	}
}

func TestNeedsRehash_WeakParameters(t *testing.T) {
	weak := "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	require.True(t, NeedsRehash(weak))
}

func TestVerifyDummy(t *testing.T) {
	require.NotPanics(t, func() { VerifyDummy("anything") })
}

func TestLoadPepper_PersistsAcrossLoads(t *testing.T) {
	// Restore the suite pepper afterwards so other tests keep verifying.
	orig := GetPepper()
	t.Cleanup(func() { setPepper(orig) })

	file := filepath.Join(t.TempDir(), "nested", "pepper")
	require.NoError(t, LoadPepper(file))
	first := GetPepper()

	setPepper("")
	require.NoError(t, LoadPepper(file))
	require.Equal(t, first, GetPepper())

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
