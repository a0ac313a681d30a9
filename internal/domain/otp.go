package domain

import "time"

// OTPChallenge is the server-side record of an outstanding code for one phone.
// The raw code is never stored, only its keyed hash.
type OTPChallenge struct {
	PhoneKey     string    `json:"phone_key"`
	CodeHash     string    `json:"code_hash"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Verified     bool      `json:"verified"`
	AttemptCount int       `json:"attempt_count"`
	SendCount    int       `json:"send_count"`
}

// ChallengeRetention is how long a lapsed challenge is kept before storage may
// drop it. Until then a verify attempt reports expiry rather than a missing code.
const ChallengeRetention = 24 * time.Hour

// Expired reports whether the challenge is past its deadline at now.
func (c OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ChallengeChange is the write a store applies after reading a challenge.
// Put and Delete are mutually exclusive; the zero value writes nothing.
type ChallengeChange struct {
	Put    *OTPChallenge
	Delete bool
}

// Subject is the identity a verified phone number resolves to.
type Subject struct {
	ID        string
	PhoneKey  string
	CreatedAt time.Time
}

// Session is the credential handed to a caller after verification.
type Session struct {
	ID              string    `json:"-"`
	SubjectID       string    `json:"subject_id"`
	IssuedAt        time.Time `json:"issued_at"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshToken    string    `json:"refresh_token"`
}

// SessionRecord is the persisted half of a session. Only the refresh token hash is kept.
type SessionRecord struct {
	ID               string
	SubjectID        string
	RefreshTokenHash string
	IssuedAt         time.Time
	ExpiresAt        time.Time
}
