package domain

import (
	"strings"
	"time"
)

// Money is an amount in minor currency units (paise).
type Money int64

// LineItem is one row of a cart snapshot.
type LineItem struct {
	ProductID string `json:"product_id"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Cart is an ordered, read-only snapshot of what the caller wants to buy.
type Cart []LineItem

// PaymentMethod is how the order is paid for.
type PaymentMethod string

const (
	PaymentOnline     PaymentMethod = "online"
	PaymentOnlineFast PaymentMethod = "online_fast"
	PaymentCOD        PaymentMethod = "cod"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentOnline, PaymentOnlineFast, PaymentCOD:
		return true
	}
	return false
}

// Prepaid reports whether the full amount is captured before placement.
func (m PaymentMethod) Prepaid() bool {
	return m == PaymentOnline || m == PaymentOnlineFast
}

type CouponKind string

const (
	CouponFlat    CouponKind = "flat"
	CouponPercent CouponKind = "percent"
)

// Coupon is a named discount rule from the catalog.
type Coupon struct {
	Code           string     `json:"code"`
	Kind           CouponKind `json:"kind"`
	Amount         Money      `json:"amount,omitempty"`
	Percent        int        `json:"percent,omitempty"`
	MaxDiscount    Money      `json:"max_discount,omitempty"`
	MinOrderAmount Money      `json:"min_order_amount"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// NormalizeCouponCode canonicalizes a code for lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the rule is well formed. It does not check eligibility.
func (c Coupon) Validate() error {
	if c.Code == "" || c.MinOrderAmount < 0 || c.MaxDiscount < 0 {
		return ErrInvalidCoupon
	}
	switch c.Kind {
	case CouponFlat:
		if c.Amount <= 0 {
			return ErrInvalidCoupon
		}
	case CouponPercent:
		if c.Percent <= 0 || c.Percent > 100 {
			return ErrInvalidCoupon
		}
	default:
		return ErrInvalidCoupon
	}
	return nil
}

// Coupon rejection reasons reported in a breakdown.
const (
	CouponRejectedNotFound    = "not_found"
	CouponRejectedInactive    = "inactive"
	CouponRejectedExpired     = "expired"
	CouponRejectedMinOrder    = "below_min_order"
	CouponRejectedUnavailable = "unavailable"
)

// PriceBreakdown is the derived, immutable result of pricing a cart.
type PriceBreakdown struct {
	Subtotal              Money  `json:"subtotal"`
	PaymentMethodDiscount Money  `json:"payment_method_discount"`
	CouponDiscount        Money  `json:"coupon_discount"`
	PayableTotal          Money  `json:"payable_total"`
	CODAdvance            *Money `json:"cod_advance,omitempty"`
	CODDueOnDelivery      *Money `json:"cod_due_on_delivery,omitempty"`
	CouponCode            string `json:"coupon_code,omitempty"`
	CouponApplied         bool   `json:"coupon_applied"`
	CouponRejection       string `json:"coupon_rejection,omitempty"`
}

// AdvanceAmount returns the COD advance, or zero for prepaid methods.
func (b PriceBreakdown) AdvanceAmount() Money {
	if b.CODAdvance == nil {
		return 0
	}
	return *b.CODAdvance
}
