package domain

import (
	"strings"
	"time"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderProcessing     OrderStatus = "processing"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

// ParseOrderStatus rejects anything outside the closed set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	switch st {
	case OrderPending, OrderProcessing, OrderShipped, OrderOutForDelivery, OrderDelivered, OrderCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Successor returns the single forward state reachable from s.
// ok is false for terminal states.
func (s OrderStatus) Successor() (next OrderStatus, ok bool) {
	switch s {
	case OrderPending:
		return OrderProcessing, true
	case OrderProcessing:
		return OrderShipped, true
	case OrderShipped:
		return OrderOutForDelivery, true
	case OrderOutForDelivery:
		return OrderDelivered, true
	case OrderDelivered, OrderCancelled:
		return "", false
	}
	panic("domain: unknown order status " + string(s))
}

// Terminal reports whether no further transition is accepted.
func (s OrderStatus) Terminal() bool {
	_, ok := s.Successor()
	return !ok
}

// Cancellable reports whether the status itself allows cancellation.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderProcessing
}

// PaymentStatus tracks money movement for an order.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentCompleted       PaymentStatus = "completed"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefundInitiated PaymentStatus = "refund_initiated"
	PaymentRefunded        PaymentStatus = "refunded"
)

// Address is where an order ships to.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
}

// Normalize trims fields and canonicalizes the contact phone.
func (a Address) Normalize(phones PhoneFormat) (Address, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	if a.Name == "" || a.Line1 == "" || a.City == "" {
		return Address{}, ErrInvalidAddress
	}
	if len(a.PostalCode) != 6 || strings.Trim(a.PostalCode, "0123456789") != "" {
		return Address{}, ErrInvalidAddress
	}
	phone, err := phones.Normalize(a.Phone)
	if err != nil {
		return Address{}, ErrInvalidAddress
	}
	a.Phone = phone
	return a, nil
}

// Order is a placed purchase. Items, address and amounts are fixed at creation;
// status fields are owned by the order service.
type Order struct {
	ID               string
	OrderNumber      string
	SubjectID        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Items            Cart
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	PaymentReference string
	Status           OrderStatus
	Pricing          PriceBreakdown
	TotalAmount      Money
	CODAdvance       Money
	RefundAmount     Money
	ShippingAddress  Address
}

// CancellationRemaining is how long the order stays cancellable, clamped at zero.
func (o Order) CancellationRemaining(now time.Time, window time.Duration) time.Duration {
	if !o.Status.Cancellable() {
		return 0
	}
	left := o.CreatedAt.Add(window).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// RefundDue is the amount to return if the order is cancelled now.
func (o Order) RefundDue() Money {
	if o.PaymentStatus != PaymentCompleted {
		return 0
	}
	if o.PaymentMethod == PaymentCOD {
		return o.CODAdvance
	}
	return o.TotalAmount
}

type CaptureStatus string

const (
	CaptureCompleted CaptureStatus = "completed"
	CaptureFailed    CaptureStatus = "failed"
)

// PaymentCapture is a gateway-confirmed money movement, recorded server side.
type PaymentCapture struct {
	Reference  string
	Method     PaymentMethod
	Amount     Money
	Status     CaptureStatus
	OrderID    string
	CapturedAt time.Time
}
