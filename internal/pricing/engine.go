// Package pricing turns a cart, a payment method and an optional coupon into a
// price breakdown. It has no I/O; coupon lookup happens before Compute is called.
package pricing

import (
	"math"
	"time"

	"github.com/cimillas/storefront-core/internal/domain"
)

const (
	defaultFastPathPercent = 10
	defaultCODAdvance      = domain.Money(9900)
	defaultRoundingUnit    = domain.Money(100)
)

// Engine holds the store-wide pricing parameters.
type Engine struct {
	fastPathPercent int
	codAdvance      domain.Money
	roundingUnit    domain.Money
}

type Option func(*Engine)

// WithFastPathPercent overrides the discount for the designated fast payment path.
func WithFastPathPercent(p int) Option {
	return func(e *Engine) {
		if p >= 0 && p <= 100 {
			e.fastPathPercent = p
		}
	}
}

// WithCODAdvance overrides the fixed advance collected on cash-on-delivery orders.
func WithCODAdvance(m domain.Money) Option {
	return func(e *Engine) {
		if m >= 0 {
			e.codAdvance = m
		}
	}
}

// WithRoundingUnit sets the granularity discounts are floored to.
func WithRoundingUnit(m domain.Money) Option {
	return func(e *Engine) {
		if m > 0 {
			e.roundingUnit = m
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		fastPathPercent: defaultFastPathPercent,
		codAdvance:      defaultCODAdvance,
		roundingUnit:    defaultRoundingUnit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is everything Compute needs. Coupon is the resolved catalog rule, nil
// when no code was given or the lookup failed; CouponCode is what the caller sent.
type Input struct {
	Cart          domain.Cart
	PaymentMethod domain.PaymentMethod
	CouponCode    string
	Coupon        *domain.Coupon
	Now           time.Time
}

// Subtotal sums the cart, rejecting empty carts and malformed lines.
func Subtotal(cart domain.Cart) (domain.Money, error) {
	if len(cart) == 0 {
		return 0, domain.ErrEmptyCart
	}
	var total domain.Money
	for _, line := range cart {
		if line.Quantity < 1 {
			return 0, domain.ErrInvalidQuantity
		}
		if line.UnitPrice < 0 {
			return 0, domain.ErrInvalidPrice
		}
		if line.UnitPrice > math.MaxInt64/domain.Money(line.Quantity) {
			return 0, domain.ErrAmountTooLarge
		}
		lineTotal := line.UnitPrice * domain.Money(line.Quantity)
		if total > math.MaxInt64-lineTotal {
			return 0, domain.ErrAmountTooLarge
		}
		total += lineTotal
	}
	return total, nil
}

// Compute is deterministic: the same Input always yields the same breakdown.
func (e *Engine) Compute(in Input) (domain.PriceBreakdown, error) {
	if !in.PaymentMethod.Valid() {
		return domain.PriceBreakdown{}, domain.ErrInvalidPaymentMethod
	}
	subtotal, err := Subtotal(in.Cart)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}

	b := domain.PriceBreakdown{Subtotal: subtotal}
	if in.PaymentMethod == domain.PaymentOnlineFast {
		b.PaymentMethodDiscount = e.floor(percentOf(subtotal, e.fastPathPercent))
	}

	code := domain.NormalizeCouponCode(in.CouponCode)
	if code != "" {
		b.CouponCode = code
		discount, reason := e.couponDiscount(in.Coupon, subtotal, in.Now)
		if reason != "" {
			b.CouponRejection = reason
		} else {
			// Never let the combined discounts push the total below zero.
			if room := subtotal - b.PaymentMethodDiscount; discount > room {
				discount = room
			}
			b.CouponDiscount = discount
			b.CouponApplied = true
		}
	}

	b.PayableTotal = subtotal - b.PaymentMethodDiscount - b.CouponDiscount
	if b.PayableTotal < 0 {
		b.PayableTotal = 0
	}

	if in.PaymentMethod == domain.PaymentCOD {
		advance := e.codAdvance
		if advance > b.PayableTotal {
			advance = b.PayableTotal
		}
		due := b.PayableTotal - advance
		b.CODAdvance = &advance
		b.CODDueOnDelivery = &due
	}
	return b, nil
}

func (e *Engine) couponDiscount(c *domain.Coupon, subtotal domain.Money, now time.Time) (domain.Money, string) {
	switch {
	case c == nil:
		return 0, domain.CouponRejectedNotFound
	case !c.Active:
		return 0, domain.CouponRejectedInactive
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return 0, domain.CouponRejectedExpired
	case subtotal < c.MinOrderAmount:
		return 0, domain.CouponRejectedMinOrder
	}

	var d domain.Money
	switch c.Kind {
	case domain.CouponFlat:
		d = c.Amount
	case domain.CouponPercent:
		d = percentOf(subtotal, c.Percent)
		if c.MaxDiscount > 0 && d > c.MaxDiscount {
			d = c.MaxDiscount
		}
	default:
		return 0, domain.CouponRejectedNotFound
	}
	return e.floor(d), ""
}

func (e *Engine) floor(m domain.Money) domain.Money {
	if m <= 0 {
		return 0
	}
	return m - m%e.roundingUnit
}

// percentOf is floor(m*p/100) for non-negative m without overflowing.
func percentOf(m domain.Money, p int) domain.Money {
	pp := domain.Money(p)
	return m/100*pp + m%100*pp/100
}
