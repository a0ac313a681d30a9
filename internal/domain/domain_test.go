package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneFormat_Normalize(t *testing.T) {
	valid := map[string]string{
		"9876543210":       "+919876543210",
		"98765 43210":      "+919876543210",
		"+91 98765-43210":  "+919876543210",
		"919876543210":     "+919876543210",
		"09876543210":      "+919876543210",
		" (987) 654-3210 ": "+919876543210",
		"+91.98765.43210":  "+919876543210",
	}
	for in, want := range valid {
		got, err := DefaultPhoneFormat.Normalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	invalid := []string{"", "12345", "0123456789", "+19876543210", "+9876543210", "98765432101", "98765abc10", "98+76543210"}
	for _, in := range invalid {
		_, err := DefaultPhoneFormat.Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}

func TestOrderStatus_Successor(t *testing.T) {
	chain := []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderOutForDelivery, OrderDelivered}
	for i := 0; i < len(chain)-1; i++ {
		next, ok := chain[i].Successor()
		require.True(t, ok)
		assert.Equal(t, chain[i+1], next)
		assert.False(t, chain[i].Terminal())
	}
	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())

	assert.True(t, OrderPending.Cancellable())
	assert.True(t, OrderProcessing.Cancellable())
	assert.False(t, OrderShipped.Cancellable())
	assert.False(t, OrderCancelled.Cancellable())
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("out_for_delivery")
	require.NoError(t, err)
	assert.Equal(t, OrderOutForDelivery, st)

	_, err = ParseOrderStatus("Shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrder_CancellationRemaining(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	o := Order{Status: OrderPending, CreatedAt: created}

	assert.Equal(t, 4*time.Hour, o.CancellationRemaining(created.Add(20*time.Hour), 24*time.Hour))
	assert.Zero(t, o.CancellationRemaining(created.Add(25*time.Hour), 24*time.Hour))

	o.Status = OrderShipped
	assert.Zero(t, o.CancellationRemaining(created.Add(time.Hour), 24*time.Hour))
}

func TestOrder_RefundDue(t *testing.T) {
	cod := Order{PaymentMethod: PaymentCOD, PaymentStatus: PaymentCompleted, TotalAmount: 120000, CODAdvance: 9900}
	assert.Equal(t, Money(9900), cod.RefundDue())

	prepaid := Order{PaymentMethod: PaymentOnline, PaymentStatus: PaymentCompleted, TotalAmount: 120000}
	assert.Equal(t, Money(120000), prepaid.RefundDue())

	unpaid := Order{PaymentMethod: PaymentOnline, PaymentStatus: PaymentPending, TotalAmount: 120000}
	assert.Zero(t, unpaid.RefundDue())

	failed := Order{PaymentMethod: PaymentCOD, PaymentStatus: PaymentFailed, CODAdvance: 9900}
	assert.Zero(t, failed.RefundDue())
}

func TestAddress_Normalize(t *testing.T) {
	a, err := Address{
		Name:       " Asha ",
		Phone:      "98765 43210",
		Line1:      "12 MG Road",
		City:       "Pune",
		PostalCode: "411001",
	}.Normalize(DefaultPhoneFormat)
	require.NoError(t, err)
	assert.Equal(t, "Asha", a.Name)
	assert.Equal(t, "+919876543210", a.Phone)

	_, err = Address{Name: "A", Phone: "9876543210", Line1: "x", City: "y", PostalCode: "41100"}.Normalize(DefaultPhoneFormat)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Address{Name: "A", Phone: "123", Line1: "x", City: "y", PostalCode: "411001"}.Normalize(DefaultPhoneFormat)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestCoupon_Validate(t *testing.T) {
	assert.NoError(t, Coupon{Code: "A", Kind: CouponFlat, Amount: 100}.Validate())
	assert.NoError(t, Coupon{Code: "B", Kind: CouponPercent, Percent: 10}.Validate())
	assert.ErrorIs(t, Coupon{Code: "C", Kind: CouponPercent, Percent: 101}.Validate(), ErrInvalidCoupon)
	assert.ErrorIs(t, Coupon{Code: "D", Kind: CouponFlat}.Validate(), ErrInvalidCoupon)
	assert.ErrorIs(t, Coupon{Code: "E", Kind: "bogo", Amount: 1}.Validate(), ErrInvalidCoupon)
}
