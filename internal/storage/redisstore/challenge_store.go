// Package redisstore keeps short-lived OTP challenges in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
)

const (
	keyPrefix     = "otp:challenge:"
	maxTxAttempts = 8
)

// ChallengeStore is an optimistic read-modify-write store over WATCH/MULTI.
type ChallengeStore struct {
	client redis.UniversalClient
	clock  clock.Clock
}

func NewChallengeStore(client redis.UniversalClient, clk clock.Clock) *ChallengeStore {
	return &ChallengeStore{client: client, clock: clk}
}

// Update applies fn to the challenge for phoneKey. A concurrent writer makes
// the transaction fail and fn is run again against the fresh value, so fn
// must not keep state across calls.
func (s *ChallengeStore) Update(ctx context.Context, phoneKey string, fn func(cur *domain.OTPChallenge) (domain.ChallengeChange, error)) error {
	key := keyPrefix + phoneKey

	txf := func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		change, err := fn(cur)
		if err != nil {
			return err
		}

		var value []byte
		if change.Put != nil {
			if value, err = json.Marshal(change.Put); err != nil {
				return fmt.Errorf("encode challenge: %w", err)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			switch {
			case change.Delete:
				pipe.Del(ctx, key)
			case change.Put != nil:
				pipe.Set(ctx, key, value, s.ttl(change.Put.ExpiresAt))
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return domain.ErrConcurrentUpdate
}

func (s *ChallengeStore) load(ctx context.Context, tx *redis.Tx, key string) (*domain.OTPChallenge, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	var c domain.OTPChallenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}

func (s *ChallengeStore) ttl(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	return d + domain.ChallengeRetention
}
