package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes is the minimum signing key length for HS256 (256 bits).
// Undersized secrets are rejected outright rather than padded: padding with
// zero bytes preserves only the entropy of the original secret.
const MinKeyBytes = 32

// Verification failures, classified. Callers log the kind and degrade to
// unauthenticated; none of these is ever surfaced to the HTTP client directly.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrExpired      = errors.New("token expired")
	ErrBadSignature = errors.New("token signature mismatch")
	ErrUnsupported  = errors.New("token algorithm or version unsupported")
)

// Claims carries the identity and authorization claims of a bearer token.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Codec mints and verifies self-contained bearer tokens. Verification is
// purely local: a single HMAC computation, no I/O, no call to the issuer.
type Codec struct {
	signingKey []byte
	ttl        time.Duration
}

// NewCodec builds a Codec from a shared symmetric secret and a fixed TTL.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if len(secret) < MinKeyBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinKeyBytes, len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Codec{signingKey: []byte(secret), ttl: ttl}, nil
}

// Mint creates a signed token for the subject with the given roles.
func (c *Codec) Mint(subject string, roles []string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks structure, signature, and expiry, returning the embedded
// claims. Failures are classified as ErrMalformed, ErrExpired,
// ErrBadSignature, or ErrUnsupported.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return c.signingKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		case errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrUnsupported
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// ExtractSubjectUnchecked reads the subject claim without verifying signature
// or expiry. It exists as a cheap pre-filter before a full Verify and must
// never be used as a substitute for it.
func (c *Codec) ExtractSubjectUnchecked(tokenString string) (string, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}
