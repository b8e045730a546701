package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// JWK represents a public key in JSON Web Key format (RFC 7517). Only the
// OKP (Ed25519) and EC (P-256) shapes are produced.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"` // EC only
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewEd25519JWK builds a JWK for an Ed25519 public key.
func NewEd25519JWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Use: "sig",
		Alg: AlgorithmEdDSA,
		Kid: kid,
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// NewES256JWK builds a JWK for an ECDSA P-256 public key. Coordinates are
// left padded to the 32 byte field size.
func NewES256JWK(kid string, pub *ecdsa.PublicKey) JWK {
	x := make([]byte, 32)
	y := make([]byte, 32)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return JWK{
		Kty: "EC",
		Use: "sig",
		Alg: AlgorithmES256,
		Kid: kid,
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}
}

func publicJWK(kid string, pub crypto.PublicKey) (JWK, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return NewEd25519JWK(kid, k), nil
	case *ecdsa.PublicKey:
		return NewES256JWK(kid, k), nil
	default:
		return JWK{}, fmt.Errorf("jwtx: unsupported public key type %T", pub)
	}
}
