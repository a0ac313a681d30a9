package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/storefront-core/internal/domain"
)

type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `id, order_number, subject_id, status, payment_method, payment_status,
payment_reference, items, pricing, total_amount, cod_advance, refund_amount,
shipping_address, created_at, updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	pricing, err := json.Marshal(order.Pricing)
	if err != nil {
		return fmt.Errorf("encode pricing: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}

	const stmt = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.exec(ctx, stmt,
		order.ID, order.OrderNumber, order.SubjectID, order.Status, order.PaymentMethod, order.PaymentStatus,
		order.PaymentReference, items, pricing, order.TotalAmount, order.CODAdvance, order.RefundAmount,
		address, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		switch {
		case violatesConstraint(err, "orders_order_number_key"):
			return domain.ErrDuplicateOrderNumber
		case isInvalidUUID(err):
			return domain.ErrInvalidID
		case isForeignKeyViolation(err):
			return domain.ErrInvalidSession
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (r *OrderRepository) getOrder(ctx context.Context, query, orderID string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, query, orderID))
	if err != nil {
		// A malformed id cannot name an order.
		if isInvalidUUID(err) || errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateOrderState writes the mutable status fields of an order.
func (r *OrderRepository) UpdateOrderState(ctx context.Context, order domain.Order) error {
	const stmt = `
UPDATE orders
SET status = $2, payment_status = $3, refund_amount = $4, updated_at = $5
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, order.ID, order.Status, order.PaymentStatus, order.RefundAmount, order.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) ListOrdersBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Order, error) {
	const query = `SELECT ` + orderColumns + `
FROM orders
WHERE subject_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.query(ctx, query, subjectID, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		if isInvalidUUID(rows.Err()) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("iterate orders: %w", rows.Err())
	}
	return orders, nil
}

func (r *OrderRepository) GetCaptureForUpdate(ctx context.Context, reference string) (*domain.PaymentCapture, error) {
	return getCaptureForUpdate(ctx, r.conn, reference)
}

// BindCapture attaches a capture to the order it paid for. A capture can be
// bound once.
func (r *OrderRepository) BindCapture(ctx context.Context, reference, orderID string) error {
	const stmt = `
UPDATE payment_captures
SET order_id = $2
WHERE reference = $1 AND order_id IS NULL`

	tag, err := r.exec(ctx, stmt, reference, orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCaptureAlreadyUsed
		}
		return fmt.Errorf("bind capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_captures WHERE reference = $1)`, reference).Scan(&exists); err != nil {
			return fmt.Errorf("check capture: %w", err)
		}
		if !exists {
			return domain.ErrCaptureNotFound
		}
		return domain.ErrCaptureAlreadyUsed
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                        domain.Order
		status, method, payment  string
		items, pricing, address  []byte
		total, advance, refunded int64
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.SubjectID, &status, &method, &payment,
		&o.PaymentReference, &items, &pricing, &total, &advance, &refunded,
		&address, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(pricing, &o.Pricing); err != nil {
		return domain.Order{}, fmt.Errorf("decode pricing: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return domain.Order{}, fmt.Errorf("decode address: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.TotalAmount = domain.Money(total)
	o.CODAdvance = domain.Money(advance)
	o.RefundAmount = domain.Money(refunded)
	return o, nil
}
