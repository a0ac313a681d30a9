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

type SessionRepository struct {
	conn
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{conn{pool: pool}}
}

func (r *SessionRepository) CreateSession(ctx context.Context, rec domain.SessionRecord) error {
	const stmt = `
INSERT INTO sessions (id, subject_id, refresh_token_hash, issued_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, rec.ID, rec.SubjectID, rec.RefreshTokenHash, rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		if isInvalidUUID(err) || isForeignKeyViolation(err) {
			return domain.ErrInvalidSession
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, subject_id, refresh_token_hash, issued_at, expires_at`

// GetSession returns nil when no session has the id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*domain.SessionRecord, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

func (r *SessionRepository) GetSessionByRefreshHash(ctx context.Context, hash string) (*domain.SessionRecord, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, hash)
}

func (r *SessionRepository) get(ctx context.Context, query, arg string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	err := r.queryRow(ctx, query, arg).
		Scan(&rec.ID, &rec.SubjectID, &rec.RefreshTokenHash, &rec.IssuedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

// RotateRefresh replaces the refresh hash if it still equals oldHash, so two
// concurrent refreshes with the same token cannot both succeed.
func (r *SessionRepository) RotateRefresh(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	const stmt = `
UPDATE sessions
SET refresh_token_hash = $3, expires_at = $4
WHERE id = $1 AND refresh_token_hash = $2`

	tag, err := r.exec(ctx, stmt, id, oldHash, newHash, expiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidSession
		}
		return fmt.Errorf("rotate refresh: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidSession
	}
	return nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil && !isInvalidUUID(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions whose refresh token lapsed before cutoff.
func (r *SessionRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
