package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/clock"
	"github.com/cimillas/storefront-core/internal/domain"
)

// OrderService is the minimal interface needed by the order endpoints.
type OrderService interface {
	Create(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
	Get(ctx context.Context, orderID, subjectID string) (domain.Order, error)
	List(ctx context.Context, subjectID string) ([]domain.Order, error)
	Transition(ctx context.Context, orderID string, next domain.OrderStatus) (domain.Order, error)
	Cancel(ctx context.Context, in app.CancelOrderInput) (app.CancelOrderResult, error)
	CompleteRefund(ctx context.Context, orderID string) (domain.Order, error)
	CancellationWindow() time.Duration
}

// HandleOrders lists and places the caller's orders. It must run behind
// RequireSession.
func HandleOrders(svc OrderService, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, domain.ErrInvalidSession.Error())
			return
		}

		switch r.Method {
		case http.MethodGet:
			orders, err := svc.List(r.Context(), p.SubjectID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			now := clk.Now()
			resp := make([]orderResponse, 0, len(orders))
			for _, o := range orders {
				resp = append(resp, newOrderResponse(o, now, svc.CancellationWindow()))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createOrderRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			order, err := svc.Create(r.Context(), app.CreateOrderInput{
				SubjectID:        p.SubjectID,
				Cart:             req.Items,
				PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
				CouponCode:       req.CouponCode,
				Address:          req.ShippingAddress,
				PaymentReference: req.PaymentReference,
			})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, newOrderResponse(order, clk.Now(), svc.CancellationWindow()))
		default:
			methodNotAllowed(w)
		}
	}
}

// HandleOrderActions serves /orders/{id} and its actions. Reading and
// cancelling are open to the owner or an operator; transition and refund
// completion are operator only.
func HandleOrderActions(svc OrderService, auth SessionAuthenticator, adminToken string, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, action, ok := parseOrderPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			subjectID, ok := caller(w, r, auth, adminToken)
			if !ok {
				return
			}
			order, err := svc.Get(r.Context(), orderID, subjectID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newOrderResponse(order, clk.Now(), svc.CancellationWindow()))

		case "cancel":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			subjectID, ok := caller(w, r, auth, adminToken)
			if !ok {
				return
			}
			res, err := svc.Cancel(r.Context(), app.CancelOrderInput{OrderID: orderID, SubjectID: subjectID})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, cancelOrderResponse{
				Order:            newOrderResponse(res.Order, clk.Now(), svc.CancellationWindow()),
				RefundAmount:     res.RefundAmount,
				AlreadyCancelled: res.AlreadyCancelled,
			})

		case "transition":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			if !isAdmin(r, adminToken) {
				writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
				return
			}
			var req transitionRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			order, err := svc.Transition(r.Context(), orderID, domain.OrderStatus(req.Next))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newOrderResponse(order, clk.Now(), svc.CancellationWindow()))

		case "refund":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			if !isAdmin(r, adminToken) {
				writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
				return
			}
			order, err := svc.CompleteRefund(r.Context(), orderID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, newOrderResponse(order, clk.Now(), svc.CancellationWindow()))

		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

// caller identifies who is acting: an operator (empty subject, no ownership
// check) or the session's subject.
func caller(w http.ResponseWriter, r *http.Request, auth SessionAuthenticator, adminToken string) (string, bool) {
	if isAdmin(r, adminToken) {
		return "", true
	}
	p, ok := authenticate(w, r, auth)
	if !ok {
		return "", false
	}
	return p.SubjectID, true
}

func parseOrderPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "orders" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 3 {
		if parts[2] == "" {
			return "", "", false
		}
		action = parts[2]
	}
	return parts[1], action, true
}

type createOrderRequest struct {
	Items            domain.Cart    `json:"items"`
	PaymentMethod    string         `json:"payment_method"`
	CouponCode       string         `json:"coupon_code,omitempty"`
	ShippingAddress  domain.Address `json:"shipping_address"`
	PaymentReference string         `json:"payment_reference,omitempty"`
}

type transitionRequest struct {
	Next string `json:"next"`
}

type orderResponse struct {
	ID                    string                `json:"id"`
	OrderNumber           string                `json:"order_number"`
	Status                domain.OrderStatus    `json:"status"`
	PaymentMethod         domain.PaymentMethod  `json:"payment_method"`
	PaymentStatus         domain.PaymentStatus  `json:"payment_status"`
	PaymentReference      string                `json:"payment_reference,omitempty"`
	Items                 domain.Cart           `json:"items"`
	Pricing               domain.PriceBreakdown `json:"pricing"`
	TotalAmount           domain.Money          `json:"total_amount"`
	CODAdvance            domain.Money          `json:"cod_advance,omitempty"`
	RefundAmount          domain.Money          `json:"refund_amount,omitempty"`
	ShippingAddress       domain.Address        `json:"shipping_address"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	CancellableForSeconds int64                 `json:"cancellable_for_seconds"`
}

func newOrderResponse(o domain.Order, now time.Time, window time.Duration) orderResponse {
	return orderResponse{
		ID:                    o.ID,
		OrderNumber:           o.OrderNumber,
		Status:                o.Status,
		PaymentMethod:         o.PaymentMethod,
		PaymentStatus:         o.PaymentStatus,
		PaymentReference:      o.PaymentReference,
		Items:                 o.Items,
		Pricing:               o.Pricing,
		TotalAmount:           o.TotalAmount,
		CODAdvance:            o.CODAdvance,
		RefundAmount:          o.RefundAmount,
		ShippingAddress:       o.ShippingAddress,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		CancellableForSeconds: int64(o.CancellationRemaining(now, window) / time.Second),
	}
}

type cancelOrderResponse struct {
	Order            orderResponse `json:"order"`
	RefundAmount     domain.Money  `json:"refund_amount"`
	AlreadyCancelled bool          `json:"already_cancelled"`
}
