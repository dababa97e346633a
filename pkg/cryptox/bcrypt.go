package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher wraps golang.org/x/crypto/bcrypt.
//
// bcrypt silently truncates input at 72 bytes, so the peppered password is
// pre-hashed with SHA-256 and base64 encoded (44 bytes) first.
type BcryptHasher struct {
	Cost   int
	Pepper string
}

func NewBcryptHasher(cost int, pepper string) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost, Pepper: pepper}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(h.prehash(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify uses bcrypt's own constant-time comparison.
func (h *BcryptHasher) Verify(password, digest string) bool {
	if !isBcryptDigest(digest) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), h.prehash(password)) == nil
}

func (h *BcryptHasher) prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password + h.Pepper))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
