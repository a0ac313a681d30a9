package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/storefront-core/internal/domain"
)

type SubjectRepository struct {
	conn
}

func NewSubjectRepository(pool *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{conn{pool: pool}}
}

// FindOrCreateByPhone returns the subject for a normalized phone, creating it
// on first sight. Concurrent first logins resolve to the same row.
func (r *SubjectRepository) FindOrCreateByPhone(ctx context.Context, phoneKey string) (domain.Subject, error) {
	const stmt = `
INSERT INTO subjects (phone)
VALUES ($1)
ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
RETURNING id, phone, created_at`

	var s domain.Subject
	if err := r.queryRow(ctx, stmt, phoneKey).Scan(&s.ID, &s.PhoneKey, &s.CreatedAt); err != nil {
		return domain.Subject{}, fmt.Errorf("find or create subject: %w", err)
	}
	return s, nil
}
