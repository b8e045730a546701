package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"fmt"

	"github.com/aussiebroadwan/bartab-accounts/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms.
const (
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner loads a PKCS8 PEM private key and picks the algorithm from the
// key type: Ed25519 signs EdDSA, P-256 signs ES256.
func NewSigner(kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	var method jwt.SigningMethod
	switch key.(type) {
	case ed25519.PrivateKey:
		method = jwt.SigningMethodEdDSA
	case *ecdsa.PrivateKey:
		method = jwt.SigningMethodES256
	default:
		return nil, fmt.Errorf("jwtx: unsupported key type %T", key)
	}

	jwk, err := publicJWK(kid, key.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, method: method, key: key, jwk: jwk}, nil
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

// Sign turns the claims into a compact JWS with the kid header set.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
