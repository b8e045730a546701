package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// GenerateEd25519Key generates a new Ed25519 private key encoded as PKCS8 PEM.
func GenerateEd25519Key() ([]byte, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate Ed25519 key: %w", err)
	}
	return encodePKCS8(key)
}

// GenerateES256Key generates a new ECDSA P-256 private key encoded as PKCS8 PEM.
func GenerateES256Key() ([]byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
	}
	return encodePKCS8(key)
}

// ParsePrivateKey decodes a PKCS8 PEM block into an Ed25519 or P-256 key.
func ParsePrivateKey(pemKey []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("cryptox: invalid PEM")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("cryptox: expected PRIVATE KEY, got %q", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}

	switch k := priv.(type) {
	case ed25519.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, errors.New("cryptox: only P-256 ECDSA keys are supported")
		}
		return k, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported private key type %T", priv)
	}
}

func encodePKCS8(key any) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
