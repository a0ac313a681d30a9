package app

import (
	"time"

	"github.com/google/uuid"
)

func newUUID() string {
	return uuid.NewString()
}

// Crockford base32: no I, L, O or U.
const orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// newOrderNumber returns a human-readable number like SF-20260301-7KQ2XM.
// Uniqueness is enforced by the store; callers retry on collision.
func newOrderNumber(now time.Time) string {
	r := uuid.New()
	b := make([]byte, 6)
	for i := range b {
		b[i] = orderNumberAlphabet[int(r[i])%len(orderNumberAlphabet)]
	}
	return "SF-" + now.UTC().Format("20060102") + "-" + string(b)
}
