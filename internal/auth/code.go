package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// Hasher keys code and token hashes with a server-side secret so a leaked
// store cannot be brute forced offline.
type Hasher struct {
	key []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{key: []byte(secret)}
}

// NewCode returns a uniformly random six digit code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// HashCode binds the code to the phone key so equal codes on different phones differ.
func (h *Hasher) HashCode(phoneKey, code string) string {
	return h.sum("otp", phoneKey, code)
}

// MatchCode compares in constant time.
func (h *Hasher) MatchCode(phoneKey, code, want string) bool {
	got := h.HashCode(phoneKey, code)
	return hmac.Equal([]byte(got), []byte(want))
}

// HashToken is used for refresh tokens at rest.
func (h *Hasher) HashToken(token string) string {
	return h.sum("refresh", token)
}

func (h *Hasher) sum(parts ...string) string {
	mac := hmac.New(sha256.New, h.key)
	for _, p := range parts {
		mac.Write([]byte(p))
		mac.Write([]byte{0})
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// NewOpaqueToken returns 32 random bytes, URL-safe encoded.
func NewOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidCodeFormat reports whether s looks like a code we could have issued.
func ValidCodeFormat(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
