package jwtx

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted (256 bits).
const MinSecretLength = 32

// HS256Issuer signs and verifies tokens with a shared symmetric secret.
// It holds no per-request state and is safe for concurrent use.
type HS256Issuer struct {
	secret []byte
	opts   VerifyOptions
	ttl    time.Duration
	now    func() time.Time
}

// NewHS256Issuer validates the secret and the expected issuer and audience,
// then fills defaults: ttl falls back to DefaultTokenTTL and now to time.Now.
// An empty issuer or audience would switch that check off during Verify, so
// both are required here.
func NewHS256Issuer(secret []byte, opts VerifyOptions, ttl time.Duration, now func() time.Time) (*HS256Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if opts.Issuer == "" {
		return nil, ErrNoIssuer
	}
	if !slices.ContainsFunc(opts.Audience, func(a string) bool { return a != "" }) {
		return nil, ErrNoAudience
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &HS256Issuer{secret: key, opts: opts, ttl: ttl, now: now}, nil
}

// TTL is the lifetime given to every issued token.
func (s *HS256Issuer) TTL() time.Duration { return s.ttl }

// Issue signs a token for the user. The expiry is fixed here and returned so
// callers never recompute it from a second clock read.
func (s *HS256Issuer) Issue(userID int64, username, email, role string) (string, time.Time, error) {
	now := s.now().UTC().Truncate(time.Second)
	claims := NewClaims(userID, username, email, role, s.opts.Issuer, s.opts.Audience, s.ttl, now)

	token, err := s.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// Sign signs arbitrary claims. Issue is the normal entry point.
func (s *HS256Issuer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry, in that order.
func (s *HS256Issuer) Verify(tokenStr string) (Claims, error) {
	// Time based checks are done below against the injected clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(s.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(s.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(s.now().UTC(), s.opts.Leeway); err != nil {
		return Claims{}, err
	}
	if _, err := claims.UserID(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
