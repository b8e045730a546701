package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"math/big"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds all public verification keys in memory. It is safe for
// concurrent use by the JWKS handler and the verifiers.
type KeySet struct {
	mu  sync.RWMutex
	jks JWKS
	pub map[string]any // kid: ed25519.PublicKey | *ecdsa.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]any)}
}

// Add parses a JWK and registers it. Adding a kid twice replaces the key.
func (k *KeySet) Add(j JWK) error {
	key, err := parseJWK(j)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.pub[j.Kid]; exists {
		for i := range k.jks.Keys {
			if k.jks.Keys[i].Kid == j.Kid {
				k.jks.Keys[i] = j
			}
		}
	} else {
		k.jks.Keys = append(k.jks.Keys, j)
	}
	k.pub[j.Kid] = key
	return nil
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a snapshot of the KeySet for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: make([]JWK, len(k.jks.Keys))}
	copy(out.Keys, k.jks.Keys)
	return out
}

// IsReady returns true if the KeySet has at least one key loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

func parseJWK(j JWK) (any, error) {
	switch j.Kty {
	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		yb, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}
