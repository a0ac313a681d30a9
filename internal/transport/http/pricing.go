package http

import (
	"context"
	"net/http"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/domain"
)

// Quoter prices a cart without placing an order.
type Quoter interface {
	Quote(ctx context.Context, in app.QuoteInput) (domain.PriceBreakdown, error)
}

// HandleQuote expects RequireSession in front of it.
func HandleQuote(svc Quoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if _, ok := PrincipalFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, domain.ErrInvalidSession.Error())
			return
		}
		var req quoteRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		breakdown, err := svc.Quote(r.Context(), app.QuoteInput{
			Cart:          req.Cart,
			PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
			CouponCode:    req.CouponCode,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	}
}

type quoteRequest struct {
	Cart          domain.Cart `json:"cart"`
	PaymentMethod string      `json:"payment_method"`
	CouponCode    string      `json:"coupon_code,omitempty"`
}
