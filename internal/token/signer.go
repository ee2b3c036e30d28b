package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer mints and verifies HMAC-signed JWTs. The secret is passed per call so
// one Signer serves both access and refresh tokens.
type Signer struct {
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

func NewSigner(algorithm string, now func() time.Time) (*Signer, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{method: method, now: now}, nil
}

// Issue signs claims with exp = now + ttl and returns the token together with
// its expiry as encoded in the token.
func (s *Signer) Issue(claims Claims, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature first and the expiry second, so a forged token
// is always reported as malformed even when its exp is in the past.
func (s *Signer) Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}
	if claims.ExpiresAt.Time.Before(s.now()) {
		return nil, ErrTokenExpired
	}
	if claims.UserID == "" || claims.Username == "" {
		return nil, fmt.Errorf("%w: missing user_id or username", ErrTokenMalformed)
	}
	return claims, nil
}
