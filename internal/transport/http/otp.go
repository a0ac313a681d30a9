package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/domain"
)

// OTPService is the minimal interface needed by the OTP endpoints.
type OTPService interface {
	SendChallenge(ctx context.Context, phone string) (app.SendChallengeResult, error)
	VerifyChallenge(ctx context.Context, phone, code string) (app.VerifyChallengeResult, error)
}

// HandleSendOTP issues a code for the phone in the body. The code itself is
// only included when the service runs with code echo enabled.
func HandleSendOTP(svc OTPService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req sendOTPRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Phone == "" {
			writeError(w, http.StatusBadRequest, codeInvalidPhone, domain.ErrInvalidPhone.Error())
			return
		}

		res, err := svc.SendChallenge(r.Context(), req.Phone)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, sendOTPResponse{
			OK:        true,
			ExpiresAt: res.ExpiresAt,
			SendsLeft: res.SendsLeft,
			DevCode:   res.DevCode,
		})
	}
}

// HandleVerifyOTP checks a code and returns a session on success.
func HandleVerifyOTP(svc OTPService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req verifyOTPRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.VerifyChallenge(r.Context(), req.Phone, req.Code)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, verifyOTPResponse{
			Session:   res.Session,
			SubjectID: res.Subject.ID,
		})
	}
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type sendOTPResponse struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
	SendsLeft int       `json:"sends_left"`
	DevCode   string    `json:"dev_code,omitempty"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type verifyOTPResponse struct {
	Session   domain.Session `json:"session"`
	SubjectID string         `json:"subject_id"`
}
