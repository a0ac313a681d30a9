package domain

import "errors"

// Validation errors.
var (
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrMalformedCode        = errors.New("code must be 6 digits")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidPrice         = errors.New("invalid unit price")
	ErrAmountTooLarge       = errors.New("order amount too large")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidAddress       = errors.New("invalid shipping address")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidCoupon        = errors.New("invalid coupon")
	ErrInvalidCapture       = errors.New("invalid payment capture")
	ErrInvalidID            = errors.New("invalid id")
)

// OTP challenge errors.
var (
	ErrChallengeNotFound = errors.New("no pending code for this phone")
	ErrChallengeExpired  = errors.New("code expired")
	ErrChallengeUsed     = errors.New("code already used")
	ErrCodeMismatch      = errors.New("incorrect code")
	ErrTooManyAttempts   = errors.New("too many attempts")
	ErrRateLimited       = errors.New("too many codes requested")
)

// Session errors.
var (
	ErrInvalidSession = errors.New("invalid or expired session")
	ErrForbidden      = errors.New("forbidden")
)

// Order errors.
var (
	ErrOrderNotFound             = errors.New("order not found")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrTerminalState             = errors.New("order is in a terminal state")
	ErrCancellationWindowExpired = errors.New("order can no longer be cancelled")
	ErrPaymentNotVerified        = errors.New("payment capture not verified")
	ErrCaptureAlreadyUsed        = errors.New("payment capture already bound to an order")
	ErrCaptureNotFound           = errors.New("payment capture not found")
	ErrCaptureConflict           = errors.New("payment capture conflicts with existing record")
	ErrCouponNotFound            = errors.New("coupon not found")
	ErrConcurrentUpdate          = errors.New("concurrent update, retry")
	ErrDuplicateOrderNumber      = errors.New("order number already taken")
)
