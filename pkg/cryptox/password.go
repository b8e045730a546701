package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters for newly created hashes.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	ErrPasswordMismatch = errors.New("cryptox: password does not match")
	ErrUnsupportedHash  = errors.New("cryptox: unsupported hash format")
)

// HashPassword generates a PHC-format Argon2id hash string including salt and parameters.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password+GetPepper()), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword compares a plaintext password against a stored hash.
//
// Argon2id PHC strings are the native format. bcrypt hashes ($2a$, $2b$, $2y$)
// are accepted for accounts imported from the previous system; they were
// created without the pepper so none is applied.
func VerifyPassword(password, encodedHash string) error {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash)
	case isBcrypt(encodedHash):
		if err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return ErrPasswordMismatch
			}
			return fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
		}
		return nil
	default:
		return ErrUnsupportedHash
	}
}

// NeedsRehash reports whether a hash should be replaced with one produced by
// HashPassword, either because it is bcrypt or because its parameters are
// weaker than the current ones.
func NeedsRehash(encodedHash string) bool {
	if !strings.HasPrefix(encodedHash, "$argon2id$") {
		return true
	}
	p, err := parseArgon2id(encodedHash)
	if err != nil {
		return true
	}
	return p.memory < memory || p.iterations < iterations || len(p.hash) < keyLength
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// VerifyDummy runs a full Argon2id verification against a throwaway hash.
// Callers use it when the account does not exist so that lookups for unknown
// and known emails take roughly the same time.
func VerifyDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("dummy-password-for-timing")
	})
	_ = VerifyPassword(password, dummyHash)
}

type argon2idHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// parseArgon2id splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func parseArgon2id(encoded string) (argon2idHash, error) {
	var out argon2idHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return out, fmt.Errorf("%w: expected 6 parts", ErrUnsupportedHash)
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" {
		return out, fmt.Errorf("%w: not argon2id v19", ErrUnsupportedHash)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &out.memory, &out.iterations, &out.parallelism); err != nil {
		return out, fmt.Errorf("%w: parameters: %v", ErrUnsupportedHash, err)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return out, fmt.Errorf("%w: salt: %v", ErrUnsupportedHash, err)
	}
	if out.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return out, fmt.Errorf("%w: hash: %v", ErrUnsupportedHash, err)
	}
	return out, nil
}

func verifyArgon2id(password, encoded string) error {
	p, err := parseArgon2id(encoded)
	if err != nil {
		return err
	}

	computed := argon2.IDKey(
		[]byte(password+GetPepper()),
		p.salt,
		p.iterations,
		p.memory,
		p.parallelism,
		uint32(len(p.hash)), // #nosec G115 - hash length comes from our own encoder
	)
	if subtle.ConstantTimeCompare(computed, p.hash) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
