package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cimillas/storefront-core/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInternalError      = "internal_error"
	codeForbidden          = "forbidden"
	codeUnauthorized       = "unauthorized"
	codeRateLimited        = "rate_limited"

	codeInvalidPhone         = "invalid_phone"
	codeInvalidCode          = "invalid_code"
	codeInvalidCart          = "invalid_cart"
	codeInvalidPaymentMethod = "invalid_payment_method"
	codeInvalidAddress       = "invalid_address"
	codeInvalidStatus        = "invalid_status"
	codeInvalidCoupon        = "invalid_coupon"
	codeInvalidCapture       = "invalid_capture"
	codeInvalidID            = "invalid_id"

	codeChallengeNotFound = "challenge_not_found"
	codeExpired           = "expired"
	codeAlreadyUsed       = "already_used"
	codeTooManyAttempts   = "too_many_attempts"

	codeOrderNotFound             = "order_not_found"
	codeInvalidTransition         = "invalid_transition"
	codeTerminalState             = "terminal_state"
	codeCancellationWindowExpired = "cancellation_window_expired"
	codePaymentNotVerified        = "payment_not_verified"
	codeCaptureAlreadyUsed        = "capture_already_used"
	codeCaptureConflict           = "capture_conflict"
	codeConflict                  = "conflict"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidPhone, http.StatusBadRequest, codeInvalidPhone},
	{domain.ErrMalformedCode, http.StatusBadRequest, codeInvalidCode},
	{domain.ErrEmptyCart, http.StatusBadRequest, codeInvalidCart},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidCart},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidCart},
	{domain.ErrAmountTooLarge, http.StatusBadRequest, codeInvalidCart},
	{domain.ErrInvalidPaymentMethod, http.StatusBadRequest, codeInvalidPaymentMethod},
	{domain.ErrInvalidAddress, http.StatusBadRequest, codeInvalidAddress},
	{domain.ErrInvalidStatus, http.StatusBadRequest, codeInvalidStatus},
	{domain.ErrInvalidCoupon, http.StatusBadRequest, codeInvalidCoupon},
	{domain.ErrInvalidCapture, http.StatusBadRequest, codeInvalidCapture},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},

	{domain.ErrChallengeNotFound, http.StatusNotFound, codeChallengeNotFound},
	{domain.ErrChallengeExpired, http.StatusConflict, codeExpired},
	{domain.ErrChallengeUsed, http.StatusConflict, codeAlreadyUsed},
	{domain.ErrCodeMismatch, http.StatusUnauthorized, codeInvalidCode},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, codeTooManyAttempts},
	{domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},

	{domain.ErrInvalidSession, http.StatusUnauthorized, codeUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden, codeForbidden},

	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrTerminalState, http.StatusConflict, codeTerminalState},
	{domain.ErrCancellationWindowExpired, http.StatusConflict, codeCancellationWindowExpired},
	{domain.ErrPaymentNotVerified, http.StatusPaymentRequired, codePaymentNotVerified},
	{domain.ErrCaptureNotFound, http.StatusPaymentRequired, codePaymentNotVerified},
	{domain.ErrCaptureAlreadyUsed, http.StatusConflict, codeCaptureAlreadyUsed},
	{domain.ErrCaptureConflict, http.StatusConflict, codeCaptureConflict},
	{domain.ErrConcurrentUpdate, http.StatusConflict, codeConflict},
	{domain.ErrDuplicateOrderNumber, http.StatusConflict, codeConflict},
}

// writeServiceError maps a service error to its HTTP status and code.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("err", err),
	)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

const maxBodyBytes = 1 << 20

// decodeJSON strictly decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}
