package jwtx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/pkg/cryptox"
)

// KeyManager manages the JWT signing and verification key of an instance.
// A single key signs every token kind; the KeySet publishes its public half.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	signer    Signer
	algorithm string
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Algorithm is "EdDSA" or "ES256".
	Algorithm string

	// Issuer is the iss claim validated on every token.
	Issuer string

	// KeyFile is a PKCS8 PEM file holding the private key. When the file
	// does not exist a key is generated and written with 0600. Empty means
	// an in-memory key, so all tokens die with the process.
	KeyFile string

	// Leeway allows clock skew when checking exp/nbf.
	Leeway time.Duration

	// Now overrides the verification clock, for tests.
	Now func() time.Time
}

// NewKeyManager loads or generates the signing key and wires the KeySet
// and Verifier around it.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	if opts.Algorithm != AlgorithmEdDSA && opts.Algorithm != AlgorithmES256 {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: ES256, EdDSA)", opts.Algorithm)
	}

	pemKey, err := loadOrGenerateKey(opts.Algorithm, opts.KeyFile)
	if err != nil {
		return nil, err
	}

	key, err := cryptox.ParsePrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	// The kid is derived from the public key so it stays stable across
	// restarts when the key is persisted.
	probe, err := publicJWK("", key.Public())
	if err != nil {
		return nil, err
	}
	kid := cryptox.FingerprintToken(probe.X + "." + probe.Y)[:16]

	signer, err := NewSigner(kid, pemKey)
	if err != nil {
		return nil, err
	}
	if signer.Alg() != opts.Algorithm {
		return nil, fmt.Errorf("jwtx: key file holds a %s key, configured algorithm is %s", signer.Alg(), opts.Algorithm)
	}

	keyset := NewKeySet()
	if err := keyset.Add(signer.PublicJWK()); err != nil {
		return nil, fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}

	return &KeyManager{
		Verifier: NewVerifier(keyset, opts.Algorithm, VerifyOptions{
			Issuer: opts.Issuer,
			Leeway: opts.Leeway,
			Now:    opts.Now,
		}),
		KeySet:    keyset,
		signer:    signer,
		algorithm: opts.Algorithm,
	}, nil
}

func loadOrGenerateKey(alg, file string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("jwtx: read key file: %w", err)
		}
	}

	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	default:
		pemKey, err = cryptox.GenerateEd25519Key()
	}
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return nil, fmt.Errorf("jwtx: create key dir: %w", err)
		}
		if err := os.WriteFile(file, pemKey, 0o600); err != nil {
			return nil, fmt.Errorf("jwtx: write key file: %w", err)
		}
	}

	return pemKey, nil
}

// Signer returns the active signer.
func (km *KeyManager) Signer() Signer { return km.signer }

// Sign signs claims with the active key.
func (km *KeyManager) Sign(c Claims) (string, error) { return km.signer.Sign(c) }

// Verify checks a token against the published keys.
func (km *KeyManager) Verify(token string) (Claims, error) { return km.Verifier.Verify(token) }

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string { return km.algorithm }

// IsReady returns true if the KeyManager has a key loaded.
func (km *KeyManager) IsReady() bool { return km.KeySet.IsReady() }
