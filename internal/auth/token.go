// Package auth verifies and issues the EdDSA bearer tokens that identify
// callers of the HTTP API.
package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidPublicKey  = errors.New("invalid Ed25519 public key")
	ErrInvalidPrivateKey = errors.New("invalid Ed25519 private key")
	ErrInvalidToken      = errors.New("invalid token")
	ErrMissingToken      = errors.New("missing bearer token")
)

const issuer = "landchat"

// Claims carried by a bearer token. The subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParsePublicKey decodes a base64 Ed25519 public key.
func ParsePublicKey(pubkeyB64 string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(decoded))
	}

	return ed25519.PublicKey(decoded), nil
}

// ParsePrivateKey decodes a base64 Ed25519 private key.
func ParsePrivateKey(privkeyB64 string) (ed25519.PrivateKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(privkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPrivateKey)
	}

	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(decoded))
	}

	return ed25519.PrivateKey(decoded), nil
}

// Verifier checks bearer tokens against a single public key.
type Verifier struct {
	key ed25519.PublicKey
}

func NewVerifier(key ed25519.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// Verify parses and validates a token and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return v.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}

// Issuer mints tokens. Used by tooling and tests; the server only verifies.
type Issuer struct {
	key ed25519.PrivateKey
	ttl time.Duration
}

func NewIssuer(key ed25519.PrivateKey, ttl time.Duration) *Issuer {
	return &Issuer{key: key, ttl: ttl}
}

// Issue signs a token for userID.
func (i *Issuer) Issue(userID, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.key)
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: malformed authorization header", ErrMissingToken)
	}

	return strings.TrimSpace(header[len(prefix):]), nil
}
