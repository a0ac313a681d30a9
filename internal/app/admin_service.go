package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
)

type AdminRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	UpsertCoupon(ctx context.Context, coupon domain.Coupon) error
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	GetCaptureForUpdate(ctx context.Context, reference string) (*domain.PaymentCapture, error)
	CreateCapture(ctx context.Context, capture domain.PaymentCapture) error
}

type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
}

func NewAdminService(repo AdminRepository, clk clock.Clock) *AdminService {
	return &AdminService{
		repo:  repo,
		clock: clk,
	}
}

type UpsertCouponInput struct {
	Code           string
	Kind           domain.CouponKind
	Amount         domain.Money
	Percent        int
	MaxDiscount    domain.Money
	MinOrderAmount domain.Money
	Active         bool
	ExpiresAt      *time.Time
}

func (s *AdminService) UpsertCoupon(ctx context.Context, in UpsertCouponInput) (domain.Coupon, error) {
	coupon := domain.Coupon{
		Code:           domain.NormalizeCouponCode(in.Code),
		Kind:           in.Kind,
		Amount:         in.Amount,
		Percent:        in.Percent,
		MaxDiscount:    in.MaxDiscount,
		MinOrderAmount: in.MinOrderAmount,
		Active:         in.Active,
		ExpiresAt:      in.ExpiresAt,
	}
	if err := coupon.Validate(); err != nil {
		return domain.Coupon{}, err
	}
	if err := s.repo.UpsertCoupon(ctx, coupon); err != nil {
		return domain.Coupon{}, err
	}
	return coupon, nil
}

func (s *AdminService) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	return s.repo.ListCoupons(ctx)
}

type RecordCaptureInput struct {
	Reference string
	Method    domain.PaymentMethod
	Amount    domain.Money
	Status    domain.CaptureStatus
}

type RecordCaptureResult struct {
	Capture domain.PaymentCapture
	Created bool
}

// RecordCapture stores a gateway-confirmed capture. Replaying the same
// notification is a no-op; a different payload for the same reference conflicts.
func (s *AdminService) RecordCapture(ctx context.Context, in RecordCaptureInput) (RecordCaptureResult, error) {
	in.Reference = strings.TrimSpace(in.Reference)
	if in.Reference == "" || in.Amount < 0 || !in.Method.Valid() {
		return RecordCaptureResult{}, domain.ErrInvalidCapture
	}
	if in.Status != domain.CaptureCompleted && in.Status != domain.CaptureFailed {
		return RecordCaptureResult{}, domain.ErrInvalidCapture
	}

	var result RecordCaptureResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.GetCaptureForUpdate(txCtx, in.Reference)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Method != in.Method || existing.Amount != in.Amount || existing.Status != in.Status {
				return domain.ErrCaptureConflict
			}
			result = RecordCaptureResult{Capture: *existing}
			return nil
		}

		capture := domain.PaymentCapture{
			Reference:  in.Reference,
			Method:     in.Method,
			Amount:     in.Amount,
			Status:     in.Status,
			CapturedAt: s.clock.Now(),
		}
		if err := s.repo.CreateCapture(txCtx, capture); err != nil {
			return err
		}
		result = RecordCaptureResult{Capture: capture, Created: true}
		return nil
	})
	if err != nil {
		return RecordCaptureResult{}, err
	}
	return result, nil
}
