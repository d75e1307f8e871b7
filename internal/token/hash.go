package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// plaintextBytes is the entropy of a generated token.
const plaintextBytes = 32

// Hasher derives the stored form of a token with keyed BLAKE2b-256.
type Hasher struct {
	key []byte
}

// NewHasher accepts keys of 1 to 64 bytes.
func NewHasher(key []byte) (*Hasher, error) {
	if _, err := blake2b.New256(key); err != nil {
		return nil, fmt.Errorf("token hash key: %w", err)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

func (h *Hasher) Hash(plaintext string) string {
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// generate returns a URL-safe random token.
func generate() (string, error) {
	b := make([]byte, plaintextBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
