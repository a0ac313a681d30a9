package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer   = "storefront-core"
	audience = "storefront"
)

// Claims carried by an access token. The token ID is the session ID, so a
// deleted session invalidates every access token minted for it.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of tokens minted by Sign.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Sign mints an access token for the session, issued at now.
func (tm *TokenManager) Sign(sessionID, subjectID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(tm.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

var errMissingClaims = errors.New("token missing session claims")

// Parse validates signature, issuer, audience and expiry as of now.
func (tm *TokenManager) Parse(tokenString string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errMissingClaims
	}
	return claims, nil
}
