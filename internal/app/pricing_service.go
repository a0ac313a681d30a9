package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
	"github.com/cimillas/storefront-core/internal/pricing"
)

// CouponLookup resolves a normalized coupon code. Missing codes return ErrCouponNotFound.
type CouponLookup interface {
	GetCoupon(ctx context.Context, code string) (domain.Coupon, error)
}

type PricingService struct {
	coupons CouponLookup
	engine  *pricing.Engine
	clock   clock.Clock
	logger  *slog.Logger
}

func NewPricingService(coupons CouponLookup, engine *pricing.Engine, clk clock.Clock, logger *slog.Logger) *PricingService {
	return &PricingService{
		coupons: coupons,
		engine:  engine,
		clock:   clk,
		logger:  loggerOrDefault(logger),
	}
}

type QuoteInput struct {
	Cart          domain.Cart
	PaymentMethod domain.PaymentMethod
	CouponCode    string
}

// Quote prices the cart. A coupon that cannot be resolved never fails the
// quote; it is reported as not applied.
func (s *PricingService) Quote(ctx context.Context, in QuoteInput) (domain.PriceBreakdown, error) {
	code := domain.NormalizeCouponCode(in.CouponCode)
	var coupon *domain.Coupon
	lookupFailed := false

	if code != "" {
		c, err := s.coupons.GetCoupon(ctx, code)
		switch {
		case err == nil:
			coupon = &c
		case errors.Is(err, domain.ErrCouponNotFound):
		default:
			lookupFailed = true
			s.logger.WarnContext(ctx, "coupon lookup failed", slog.String("code", code), slog.Any("err", err))
		}
	}

	b, err := s.engine.Compute(pricing.Input{
		Cart:          in.Cart,
		PaymentMethod: in.PaymentMethod,
		CouponCode:    code,
		Coupon:        coupon,
		Now:           s.clock.Now(),
	})
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	if lookupFailed {
		b.CouponRejection = domain.CouponRejectedUnavailable
	}
	return b, nil
}
