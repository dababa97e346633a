package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher is a one-way salted password hash with constant-time verification.
// Verify never returns an error: a malformed digest is simply a mismatch.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Rehasher is implemented by hashers that can tell when a stored digest
// should be replaced by a fresh Hash of the same password.
type Rehasher interface {
	NeedsRehash(digest string) bool
}

const argon2Prefix = "$argon2id$"

// Argon2Params is the tunable work factor for Argon2id.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the OWASP minimum (19 MiB, t=2, p=1).
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var errMalformedDigest = errors.New("cryptox: malformed digest")

// Argon2Hasher produces PHC-format Argon2id digests. Pepper is appended to the
// plaintext before hashing and is never stored in the digest.
type Argon2Hasher struct {
	Params Argon2Params
	Pepper string
}

// NewArgon2Hasher fills zero fields of p from DefaultArgon2Params.
func NewArgon2Hasher(p Argon2Params, pepper string) *Argon2Hasher {
	if p.Memory == 0 {
		p.Memory = DefaultArgon2Params.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultArgon2Params.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultArgon2Params.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = DefaultArgon2Params.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = DefaultArgon2Params.KeyLength
	}
	return &Argon2Hasher{Params: p, Pepper: pepper}
}

// Hash generates a PHC-format Argon2id hash string including salt and parameters.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey(
		[]byte(password+h.Pepper),
		salt,
		h.Params.Iterations,
		h.Params.Memory,
		h.Params.Parallelism,
		h.Params.KeyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Params.Memory,
		h.Params.Iterations,
		h.Params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify re-derives the key with the digest's own parameters, so digests made
// under an older work factor keep verifying.
func (h *Argon2Hasher) Verify(password, encodedHash string) bool {
	p, salt, expected, err := decodeArgon2(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password+h.Pepper),
		salt,
		p.Iterations,
		p.Memory,
		p.Parallelism,
		uint32(len(expected)), // #nosec G115 - bounded by decodeArgon2
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// decodeArgon2 parses $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformedDigest
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, errMalformedDigest
	}
	// Zero parameters make argon2 panic; an attacker-controlled digest must
	// not be able to do that.
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return p, nil, nil, errMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errMalformedDigest
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 || len(hash) > 1024 {
		return p, nil, nil, errMalformedDigest
	}

	return p, salt, hash, nil
}

// MultiHasher hashes with Primary and verifies any digest format it knows,
// so switching the configured algorithm does not lock out existing users.
type MultiHasher struct {
	Primary Hasher
	Argon2  *Argon2Hasher
	Bcrypt  *BcryptHasher
}

func (m *MultiHasher) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *MultiHasher) Verify(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2Prefix) && m.Argon2 != nil:
		return m.Argon2.Verify(password, digest)
	case isBcryptDigest(digest) && m.Bcrypt != nil:
		return m.Bcrypt.Verify(password, digest)
	default:
		return false
	}
}

// NeedsRehash reports whether digest was produced by an algorithm other
// than the primary one.
func (m *MultiHasher) NeedsRehash(digest string) bool {
	switch m.Primary.(type) {
	case *Argon2Hasher:
		return !strings.HasPrefix(digest, argon2Prefix)
	case *BcryptHasher:
		return !isBcryptDigest(digest)
	default:
		return false
	}
}
