package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// SeedBytes is the number of random bytes drawn per token.
	SeedBytes = 32
	// TokenLength is the length of every generated token: a hex-encoded SHA-256 digest.
	TokenLength = sha256.Size * 2
)

// ErrEntropySourceUnavailable is returned when the random source cannot supply a seed.
// The login attempt must be aborted; there is no fallback source.
var ErrEntropySourceUnavailable = errors.New("entropy source unavailable")

// TokenGenerator produces opaque session tokens. The seed is hashed before use so the
// token length is constant and the seed cannot be recovered from a stored token.
type TokenGenerator struct {
	random io.Reader
}

// NewTokenGenerator returns a TokenGenerator reading from crypto/rand.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{random: rand.Reader}
}

// NewTokenGeneratorFromReader returns a TokenGenerator reading seeds from r. r must be a
// cryptographically secure source outside of tests.
func NewTokenGeneratorFromReader(r io.Reader) *TokenGenerator {
	return &TokenGenerator{random: r}
}

// Generate returns a new 64-character lowercase hex token.
func (g *TokenGenerator) Generate() (string, error) {
	seed := make([]byte, SeedBytes)
	if _, err := io.ReadFull(g.random, seed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropySourceUnavailable, err)
	}
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:]), nil
}

// TokenEqual compares two tokens in constant time.
func TokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// WellFormedToken reports whether s has the shape of a generated token. Used to reject
// garbage before it reaches a store lookup.
func WellFormedToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
