package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.True(t, ValidCodeFormat(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 150)
}

func TestValidCodeFormat(t *testing.T) {
	assert.True(t, ValidCodeFormat("000123"))
	assert.False(t, ValidCodeFormat("12345"))
	assert.False(t, ValidCodeFormat("1234567"))
	assert.False(t, ValidCodeFormat("12a456"))
}

func TestHasher(t *testing.T) {
	h := NewHasher("salt-1")
	hash := h.HashCode("+919876543210", "123456")

	assert.NotContains(t, hash, "123456")
	assert.True(t, h.MatchCode("+919876543210", "123456", hash))
	assert.False(t, h.MatchCode("+919876543210", "123457", hash))
	assert.False(t, h.MatchCode("+919876543211", "123456", hash))
	assert.False(t, NewHasher("salt-2").MatchCode("+919876543210", "123456", hash))

	assert.NotEqual(t, h.HashToken("abc"), h.HashCode("abc", ""))
}

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken()
	require.NoError(t, err)
	b, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", 15*time.Minute)

	token, exp, err := tm.Sign("sess-1", "subj-1", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), exp)

	claims, err := tm.Parse(token, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.ID)
	assert.Equal(t, "subj-1", claims.Subject)

	_, err = tm.Parse(token, now.Add(16*time.Minute))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = NewTokenManager("other", time.Minute).Parse(token, now)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = tm.Parse(strings.Replace(token, ".", "x.", 1), now)
	assert.Error(t, err)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "s",
		Subject:   "u",
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).Parse(unsigned, now)
	assert.Error(t, err)
}
