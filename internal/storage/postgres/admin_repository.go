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

// AdminRepository stores the catalog data operators manage: coupons and
// gateway payment captures.
type AdminRepository struct {
	conn
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{conn{pool: pool}}
}

func (r *AdminRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *AdminRepository) UpsertCoupon(ctx context.Context, c domain.Coupon) error {
	const stmt = `
INSERT INTO coupons (code, kind, amount, percent, max_discount, min_order_amount, active, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE SET
	kind = EXCLUDED.kind,
	amount = EXCLUDED.amount,
	percent = EXCLUDED.percent,
	max_discount = EXCLUDED.max_discount,
	min_order_amount = EXCLUDED.min_order_amount,
	active = EXCLUDED.active,
	expires_at = EXCLUDED.expires_at,
	updated_at = NOW()`

	_, err := r.exec(ctx, stmt, c.Code, c.Kind, c.Amount, c.Percent, c.MaxDiscount, c.MinOrderAmount, c.Active, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert coupon: %w", err)
	}
	return nil
}

const couponColumns = `code, kind, amount, percent, max_discount, min_order_amount, active, expires_at`

// GetCoupon looks a coupon up by its normalized code.
func (r *AdminRepository) GetCoupon(ctx context.Context, code string) (domain.Coupon, error) {
	c, err := scanCoupon(r.queryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Coupon{}, domain.ErrCouponNotFound
		}
		return domain.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (r *AdminRepository) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := r.query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate coupons: %w", rows.Err())
	}
	return coupons, nil
}

func (r *AdminRepository) GetCaptureForUpdate(ctx context.Context, reference string) (*domain.PaymentCapture, error) {
	return getCaptureForUpdate(ctx, r.conn, reference)
}

func (r *AdminRepository) CreateCapture(ctx context.Context, c domain.PaymentCapture) error {
	const stmt = `
INSERT INTO payment_captures (reference, method, amount, status, captured_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, c.Reference, c.Method, c.Amount, c.Status, c.CapturedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCaptureConflict
		}
		return fmt.Errorf("create capture: %w", err)
	}
	return nil
}

func scanCoupon(row pgx.Row) (domain.Coupon, error) {
	var (
		c                         domain.Coupon
		kind                      string
		amount, maxDisc, minOrder int64
		expires                   *time.Time
	)
	if err := row.Scan(&c.Code, &kind, &amount, &c.Percent, &maxDisc, &minOrder, &c.Active, &expires); err != nil {
		return domain.Coupon{}, err
	}
	c.Kind = domain.CouponKind(kind)
	c.Amount = domain.Money(amount)
	c.MaxDiscount = domain.Money(maxDisc)
	c.MinOrderAmount = domain.Money(minOrder)
	c.ExpiresAt = expires
	return c, nil
}

func getCaptureForUpdate(ctx context.Context, c conn, reference string) (*domain.PaymentCapture, error) {
	const query = `
SELECT reference, method, amount, status, COALESCE(order_id::text, ''), captured_at
FROM payment_captures
WHERE reference = $1
FOR UPDATE`

	var (
		capture        domain.PaymentCapture
		method, status string
		amount         int64
	)
	err := c.queryRow(ctx, query, reference).
		Scan(&capture.Reference, &method, &amount, &status, &capture.OrderID, &capture.CapturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get capture: %w", err)
	}
	capture.Method = domain.PaymentMethod(method)
	capture.Status = domain.CaptureStatus(status)
	capture.Amount = domain.Money(amount)
	return &capture, nil
}
