package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/domain"
)

// AdminCouponService is the minimal interface needed for coupon management.
type AdminCouponService interface {
	UpsertCoupon(ctx context.Context, in app.UpsertCouponInput) (domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
}

// AdminPaymentService records gateway captures reported by operators or a
// payment webhook relay.
type AdminPaymentService interface {
	RecordCapture(ctx context.Context, in app.RecordCaptureInput) (app.RecordCaptureResult, error)
}

// HandleAdminCoupons lists and upserts coupons. It must run behind AdminOnly.
func HandleAdminCoupons(svc AdminCouponService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			coupons, err := svc.ListCoupons(r.Context())
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			if coupons == nil {
				coupons = []domain.Coupon{}
			}
			writeJSON(w, http.StatusOK, coupons)
		case http.MethodPost:
			var req upsertCouponRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			in := app.UpsertCouponInput{
				Code:           req.Code,
				Kind:           domain.CouponKind(req.Kind),
				Amount:         req.Amount,
				Percent:        req.Percent,
				MaxDiscount:    req.MaxDiscount,
				MinOrderAmount: req.MinOrderAmount,
				Active:         req.Active == nil || *req.Active,
			}
			if req.ExpiresAt != "" {
				expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
				if err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidCoupon, "expires_at must be RFC3339")
					return
				}
				expires = expires.UTC()
				in.ExpiresAt = &expires
			}

			coupon, err := svc.UpsertCoupon(r.Context(), in)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, coupon)
		default:
			methodNotAllowed(w)
		}
	}
}

// HandleAdminPayments records a payment capture. A replay of an identical
// capture answers 200 instead of 201.
func HandleAdminPayments(svc AdminPaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		var req recordCaptureRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.RecordCapture(r.Context(), app.RecordCaptureInput{
			Reference: req.Reference,
			Method:    domain.PaymentMethod(req.Method),
			Amount:    req.Amount,
			Status:    domain.CaptureStatus(req.Status),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, captureResponse{
			Reference:  res.Capture.Reference,
			Method:     res.Capture.Method,
			Amount:     res.Capture.Amount,
			Status:     res.Capture.Status,
			OrderID:    res.Capture.OrderID,
			CapturedAt: res.Capture.CapturedAt,
		})
	}
}

type upsertCouponRequest struct {
	Code           string       `json:"code"`
	Kind           string       `json:"kind"`
	Amount         domain.Money `json:"amount"`
	Percent        int          `json:"percent"`
	MaxDiscount    domain.Money `json:"max_discount"`
	MinOrderAmount domain.Money `json:"min_order_amount"`
	Active         *bool        `json:"active"`
	ExpiresAt      string       `json:"expires_at"`
}

type recordCaptureRequest struct {
	Reference string       `json:"reference"`
	Method    string       `json:"method"`
	Amount    domain.Money `json:"amount"`
	Status    string       `json:"status"`
}

type captureResponse struct {
	Reference  string               `json:"reference"`
	Method     domain.PaymentMethod `json:"method"`
	Amount     domain.Money         `json:"amount"`
	Status     domain.CaptureStatus `json:"status"`
	OrderID    string               `json:"order_id,omitempty"`
	CapturedAt time.Time            `json:"captured_at"`
}
