package app

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderState(ctx context.Context, order domain.Order) error
	ListOrdersBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Order, error)
	GetCaptureForUpdate(ctx context.Context, reference string) (*domain.PaymentCapture, error)
	BindCapture(ctx context.Context, reference, orderID string) error
}

// Quoter prices a cart; satisfied by PricingService.
type Quoter interface {
	Quote(ctx context.Context, in QuoteInput) (domain.PriceBreakdown, error)
}

const (
	defaultCancellationWindow = 24 * time.Hour
	orderNumberAttempts       = 3
	defaultListLimit          = 50
)

type OrderService struct {
	repo          OrderRepository
	quoter        Quoter
	notifier      Notifier
	clock         clock.Clock
	logger        *slog.Logger
	phones        domain.PhoneFormat
	window        time.Duration
	notifyTimeout time.Duration
}

type OrderServiceOption func(*OrderService)

// WithCancellationWindow overrides how long after placement an order may be cancelled.
func WithCancellationWindow(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithOrderPhoneFormat(f domain.PhoneFormat) OrderServiceOption {
	return func(s *OrderService) {
		if f.CountryCode != "" && f.Digits > 0 {
			s.phones = f
		}
	}
}

func WithOrderNotifyTimeout(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func NewOrderService(repo OrderRepository, quoter Quoter, notifier Notifier, clk clock.Clock, logger *slog.Logger, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:          repo,
		quoter:        quoter,
		notifier:      notifier,
		clock:         clk,
		logger:        loggerOrDefault(logger),
		phones:        domain.DefaultPhoneFormat,
		window:        defaultCancellationWindow,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CancellationWindow is the configured cancellation window.
func (s *OrderService) CancellationWindow() time.Duration {
	return s.window
}

type CreateOrderInput struct {
	SubjectID     string
	Cart          domain.Cart
	PaymentMethod domain.PaymentMethod
	CouponCode    string
	Address       domain.Address
	// PaymentReference names a gateway capture recorded server side. Empty
	// means nothing has been captured yet.
	PaymentReference string
}

// Create prices the cart and persists a pending order. When a payment
// reference is given the capture must exist, be completed, match the amount
// due now and not already belong to another order.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.SubjectID == "" {
		return domain.Order{}, domain.ErrInvalidSession
	}
	if !in.PaymentMethod.Valid() {
		return domain.Order{}, domain.ErrInvalidPaymentMethod
	}
	if len(in.Cart) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	address, err := in.Address.Normalize(s.phones)
	if err != nil {
		return domain.Order{}, err
	}

	breakdown, err := s.quoter.Quote(ctx, QuoteInput{
		Cart:          in.Cart,
		PaymentMethod: in.PaymentMethod,
		CouponCode:    in.CouponCode,
	})
	if err != nil {
		return domain.Order{}, err
	}

	dueNow := breakdown.PayableTotal
	if in.PaymentMethod == domain.PaymentCOD {
		dueNow = breakdown.AdvanceAmount()
	}
	ref := strings.TrimSpace(in.PaymentReference)

	var order domain.Order
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		now := s.clock.Now()
		order = domain.Order{
			ID:               newUUID(),
			OrderNumber:      newOrderNumber(now),
			SubjectID:        in.SubjectID,
			CreatedAt:        now,
			UpdatedAt:        now,
			Items:            in.Cart,
			PaymentMethod:    in.PaymentMethod,
			PaymentStatus:    domain.PaymentPending,
			PaymentReference: ref,
			Status:           domain.OrderPending,
			Pricing:          breakdown,
			TotalAmount:      breakdown.PayableTotal,
			CODAdvance:       breakdown.AdvanceAmount(),
			ShippingAddress:  address,
		}
		if ref == "" && dueNow == 0 {
			order.PaymentStatus = domain.PaymentCompleted
		}

		err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
			if ref != "" {
				capture, err := s.repo.GetCaptureForUpdate(txCtx, ref)
				if err != nil {
					return err
				}
				if err := verifyCapture(capture, in.PaymentMethod, dueNow); err != nil {
					return err
				}
				order.PaymentStatus = domain.PaymentCompleted
			}
			if err := s.repo.CreateOrder(txCtx, order); err != nil {
				return err
			}
			if ref != "" {
				return s.repo.BindCapture(txCtx, ref, order.ID)
			}
			return nil
		})
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			break
		}
	}
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("payment_status", string(order.PaymentStatus)),
	)
	dispatch(ctx, s.notifier, s.logger, s.notifyTimeout, domain.Event{
		Kind:      domain.EventOrderCreated,
		SubjectID: order.SubjectID,
		OrderID:   order.ID,
		Payload: map[string]string{
			"order_number": order.OrderNumber,
			"total_amount": formatMoney(order.TotalAmount),
		},
		OccurredAt: order.CreatedAt,
	})
	return order, nil
}

func verifyCapture(c *domain.PaymentCapture, method domain.PaymentMethod, due domain.Money) error {
	if c == nil || c.Status != domain.CaptureCompleted {
		return domain.ErrPaymentNotVerified
	}
	if c.OrderID != "" {
		return domain.ErrCaptureAlreadyUsed
	}
	if c.Method != method || c.Amount != due {
		return domain.ErrPaymentNotVerified
	}
	return nil
}

// Get returns the order if subjectID owns it. An empty subjectID skips the ownership check.
func (s *OrderService) Get(ctx context.Context, orderID, subjectID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if subjectID != "" && order.SubjectID != subjectID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, subjectID string) ([]domain.Order, error) {
	if subjectID == "" {
		return nil, domain.ErrInvalidSession
	}
	return s.repo.ListOrdersBySubject(ctx, subjectID, defaultListLimit)
}

// Transition moves the order one step along the fulfilment chain.
func (s *OrderService) Transition(ctx context.Context, orderID string, next domain.OrderStatus) (domain.Order, error) {
	if _, err := domain.ParseOrderStatus(string(next)); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	var from domain.OrderStatus
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		successor, ok := o.Status.Successor()
		if !ok {
			return domain.ErrTerminalState
		}
		if next != successor {
			return domain.ErrInvalidTransition
		}

		from = o.Status
		o.Status = next
		o.UpdatedAt = s.clock.Now()
		// Cash collected at the door settles an unpaid COD order.
		if next == domain.OrderDelivered && o.PaymentMethod == domain.PaymentCOD && o.PaymentStatus == domain.PaymentPending {
			o.PaymentStatus = domain.PaymentCompleted
		}
		if err := s.repo.UpdateOrderState(txCtx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	dispatch(ctx, s.notifier, s.logger, s.notifyTimeout, domain.Event{
		Kind:      domain.EventOrderStatusChanged,
		SubjectID: order.SubjectID,
		OrderID:   order.ID,
		Payload: map[string]string{
			"order_number": order.OrderNumber,
			"from":         string(from),
			"to":           string(order.Status),
		},
		OccurredAt: order.UpdatedAt,
	})
	return order, nil
}

type CancelOrderInput struct {
	OrderID string
	// SubjectID restricts cancellation to the owner when set.
	SubjectID string
}

type CancelOrderResult struct {
	Order        domain.Order
	RefundAmount domain.Money
	// AlreadyCancelled is true when the call was a retry of an earlier cancel.
	AlreadyCancelled bool
}

// Cancel cancels a pending or processing order inside the cancellation window
// and works out what must be refunded. Cancelling twice returns the first result.
func (s *OrderService) Cancel(ctx context.Context, in CancelOrderInput) (CancelOrderResult, error) {
	var result CancelOrderResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}
		if in.SubjectID != "" && o.SubjectID != in.SubjectID {
			return domain.ErrOrderNotFound
		}
		if o.Status == domain.OrderCancelled {
			result = CancelOrderResult{Order: o, RefundAmount: o.RefundAmount, AlreadyCancelled: true}
			return nil
		}

		now := s.clock.Now()
		if !o.Status.Cancellable() || now.Sub(o.CreatedAt) > s.window {
			return domain.ErrCancellationWindowExpired
		}

		refund := o.RefundDue()
		if o.PaymentStatus == domain.PaymentCompleted {
			o.PaymentStatus = domain.PaymentRefundInitiated
		}
		o.Status = domain.OrderCancelled
		o.RefundAmount = refund
		o.UpdatedAt = now
		if err := s.repo.UpdateOrderState(txCtx, o); err != nil {
			return err
		}
		result = CancelOrderResult{Order: o, RefundAmount: refund}
		return nil
	})
	if err != nil {
		return CancelOrderResult{}, err
	}

	if !result.AlreadyCancelled {
		s.logger.InfoContext(ctx, "order cancelled",
			slog.String("order_id", result.Order.ID),
			slog.Int64("refund_amount", int64(result.RefundAmount)),
		)
		dispatch(ctx, s.notifier, s.logger, s.notifyTimeout, domain.Event{
			Kind:      domain.EventOrderCancelled,
			SubjectID: result.Order.SubjectID,
			OrderID:   result.Order.ID,
			Payload: map[string]string{
				"order_number":  result.Order.OrderNumber,
				"refund_amount": formatMoney(result.RefundAmount),
			},
			OccurredAt: result.Order.UpdatedAt,
		})
	}
	return result, nil
}

// CompleteRefund records that the gateway has returned the money.
func (s *OrderService) CompleteRefund(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	changed := false
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		switch o.PaymentStatus {
		case domain.PaymentRefunded:
			order = o
			return nil
		case domain.PaymentRefundInitiated:
		default:
			return domain.ErrInvalidTransition
		}
		o.PaymentStatus = domain.PaymentRefunded
		o.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateOrderState(txCtx, o); err != nil {
			return err
		}
		order = o
		changed = true
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if changed {
		dispatch(ctx, s.notifier, s.logger, s.notifyTimeout, domain.Event{
			Kind:      domain.EventOrderRefunded,
			SubjectID: order.SubjectID,
			OrderID:   order.ID,
			Payload: map[string]string{
				"order_number":  order.OrderNumber,
				"refund_amount": formatMoney(order.RefundAmount),
			},
			OccurredAt: order.UpdatedAt,
		})
	}
	return order, nil
}

func formatMoney(m domain.Money) string {
	return strconv.FormatInt(int64(m), 10)
}
