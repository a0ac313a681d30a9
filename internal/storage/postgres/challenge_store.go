package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/storefront-core/internal/domain"
)

// ChallengeStore keeps OTP challenges in Postgres. It is the fallback when no
// Redis is configured.
type ChallengeStore struct {
	conn
}

func NewChallengeStore(pool *pgxpool.Pool) *ChallengeStore {
	return &ChallengeStore{conn{pool: pool}}
}

// Update runs fn against the current challenge for phoneKey under a
// transaction-scoped advisory lock, which also covers the case where no row
// exists yet. If fn fails nothing is written.
func (s *ChallengeStore) Update(ctx context.Context, phoneKey string, fn func(cur *domain.OTPChallenge) (domain.ChallengeChange, error)) error {
	return withTx(ctx, s.pool, func(txCtx context.Context) error {
		if _, err := s.exec(txCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "otp:"+phoneKey); err != nil {
			return fmt.Errorf("lock challenge: %w", err)
		}

		cur, err := s.get(txCtx, phoneKey)
		if err != nil {
			return err
		}
		change, err := fn(cur)
		if err != nil {
			return err
		}

		switch {
		case change.Delete:
			if _, err := s.exec(txCtx, `DELETE FROM otp_challenges WHERE phone = $1`, phoneKey); err != nil {
				return fmt.Errorf("delete challenge: %w", err)
			}
		case change.Put != nil:
			if err := s.put(txCtx, phoneKey, *change.Put); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ChallengeStore) get(ctx context.Context, phoneKey string) (*domain.OTPChallenge, error) {
	const query = `
SELECT phone, code_hash, created_at, expires_at, verified, attempt_count, send_count
FROM otp_challenges
WHERE phone = $1
FOR UPDATE`

	var c domain.OTPChallenge
	err := s.queryRow(ctx, query, phoneKey).
		Scan(&c.PhoneKey, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Verified, &c.AttemptCount, &c.SendCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &c, nil
}

func (s *ChallengeStore) put(ctx context.Context, phoneKey string, c domain.OTPChallenge) error {
	const stmt = `
INSERT INTO otp_challenges (phone, code_hash, created_at, expires_at, verified, attempt_count, send_count)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (phone) DO UPDATE SET
	code_hash = EXCLUDED.code_hash,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at,
	verified = EXCLUDED.verified,
	attempt_count = EXCLUDED.attempt_count,
	send_count = EXCLUDED.send_count`

	_, err := s.exec(ctx, stmt, phoneKey, c.CodeHash, c.CreatedAt, c.ExpiresAt, c.Verified, c.AttemptCount, c.SendCount)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// PurgeExpired deletes challenges that lapsed more than
// domain.ChallengeRetention before now.
func (s *ChallengeStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-domain.ChallengeRetention)
	tag, err := s.exec(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}
