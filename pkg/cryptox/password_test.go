package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the suite fast; the format is identical.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}

func TestArgon2Hash(t *testing.T) {
	h := NewArgon2Hasher(testParams, "pepper")

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.NotEqual(t, tt.password, hash)

			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should be in PHC format")
			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "m=1024,t=1,p=1", parts[3])

			require.True(t, h.Verify(tt.password, hash))
		})
	}
}

func TestArgon2UniqueSalts(t *testing.T) {
	h := NewArgon2Hasher(testParams, "")

	hash1, err := h.Hash("samepassword")
	require.NoError(t, err)
	hash2, err := h.Hash("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
	require.True(t, h.Verify("samepassword", hash1))
	require.True(t, h.Verify("samepassword", hash2))
}

func TestArgon2WrongPassword(t *testing.T) {
	h := NewArgon2Hasher(testParams, "pepper")
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong-password", "correct-passwor", "correct-password ", "Correct-password", ""} {
		require.False(t, h.Verify(wrong, hash), "password %q", wrong)
	}
}

func TestArgon2PepperMatters(t *testing.T) {
	hash, err := NewArgon2Hasher(testParams, "one").Hash("secret")
	require.NoError(t, err)

	require.False(t, NewArgon2Hasher(testParams, "two").Verify("secret", hash))
}

func TestArgon2VerifiesOlderWorkFactor(t *testing.T) {
	old := NewArgon2Hasher(Argon2Params{Memory: 512, Iterations: 1, Parallelism: 1}, "p")
	hash, err := old.Hash("secret")
	require.NoError(t, err)

	current := NewArgon2Hasher(testParams, "p")
	require.True(t, current.Verify("secret", hash))
}

func TestArgon2MalformedDigest(t *testing.T) {
	h := NewArgon2Hasher(testParams, "")

	tests := map[string]string{
		"empty":           "",
		"plaintext":       "secret",
		"wrong algorithm": "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"wrong version":   "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"bad params":      "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"zero params":     "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
		"bad salt":        "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"bad hash":        "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$!!!",
		"too few parts":   "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA",
		"too many parts":  "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA$extra",
	}

	for name, digest := range tests {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, h.Verify("secret", digest))
			})
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4, "pepper")

	hash, err := h.Hash("P@ss1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2a$04$"))
	require.True(t, h.Verify("P@ss1", hash))
	require.False(t, h.Verify("P@ss2", hash))
	require.False(t, h.Verify("P@ss1", "$2a$04$garbage"))
	require.False(t, h.Verify("P@ss1", ""))

	// Pre-hashing means bytes past 72 still count.
	long := strings.Repeat("x", 80)
	longHash, err := h.Hash(long + "a")
	require.NoError(t, err)
	require.False(t, h.Verify(long+"b", longHash))
}

func TestBcryptInvalidCostFallsBack(t *testing.T) {
	require.Equal(t, 10, NewBcryptHasher(1, "").Cost)
	require.Equal(t, 10, NewBcryptHasher(99, "").Cost)
}

func TestMultiHasher(t *testing.T) {
	a := NewArgon2Hasher(testParams, "p")
	b := NewBcryptHasher(4, "p")

	argonDigest, err := a.Hash("secret")
	require.NoError(t, err)
	bcryptDigest, err := b.Hash("secret")
	require.NoError(t, err)

	m := &MultiHasher{Primary: a, Argon2: a, Bcrypt: b}

	require.True(t, m.Verify("secret", argonDigest))
	require.True(t, m.Verify("secret", bcryptDigest))
	require.False(t, m.Verify("secret", "plain"))

	require.False(t, m.NeedsRehash(argonDigest))
	require.True(t, m.NeedsRehash(bcryptDigest))

	fresh, err := m.Hash("secret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(fresh, argon2Prefix))
}

func TestLoadOrGeneratePepper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrGeneratePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "existing pepper must be reused")

	_, err = LoadOrGeneratePepper("")
	require.Error(t, err)
}
