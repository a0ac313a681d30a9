package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/domain"
)

type fakeOTPService struct {
	sendResult   app.SendChallengeResult
	sendErr      error
	verifyResult app.VerifyChallengeResult
	verifyErr    error

	phone, code string
}

func (f *fakeOTPService) SendChallenge(_ context.Context, phone string) (app.SendChallengeResult, error) {
	f.phone = phone
	return f.sendResult, f.sendErr
}

func (f *fakeOTPService) VerifyChallenge(_ context.Context, phone, code string) (app.VerifyChallengeResult, error) {
	f.phone, f.code = phone, code
	return f.verifyResult, f.verifyErr
}

var otpExpiry = time.Date(2026, 2, 1, 9, 5, 0, 0, time.UTC)

func TestHandleSendOTP(t *testing.T) {
	tests := []struct {
		name    string
		devCode string
		wantDev bool
	}{
		{name: "delivered out of band", devCode: "", wantDev: false},
		{name: "echoed in development", devCode: "123456", wantDev: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOTPService{sendResult: app.SendChallengeResult{
				PhoneKey:  "+919876543210",
				ExpiresAt: otpExpiry,
				SendsLeft: 4,
				DevCode:   tt.devCode,
			}}
			rec := httptest.NewRecorder()
			HandleSendOTP(svc)(rec, jsonRequest(t, http.MethodPost, "/otp/send", sendOTPRequest{Phone: "98765 43210"}))

			require.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, "98765 43210", svc.phone)

			body := decodeBody[map[string]any](t, rec)
			assert.Equal(t, true, body["ok"])
			assert.Equal(t, float64(4), body["sends_left"])
			assert.Equal(t, "2026-02-01T09:05:00Z", body["expires_at"])
			if tt.wantDev {
				assert.Equal(t, "123456", body["dev_code"])
			} else {
				assert.NotContains(t, body, "dev_code")
			}
			assert.NotContains(t, body, "PhoneKey")
		})
	}
}

func TestHandleSendOTP_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   any
		err    error
		status int
		code   string
	}{
		{name: "wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed, code: codeMethodNotAllowed},
		{name: "bad body", method: http.MethodPost, body: `{"phone":`, status: http.StatusBadRequest, code: codeInvalidRequestBody},
		{name: "missing phone", method: http.MethodPost, body: sendOTPRequest{}, status: http.StatusBadRequest, code: codeInvalidPhone},
		{name: "invalid phone", method: http.MethodPost, body: sendOTPRequest{Phone: "12"}, err: domain.ErrInvalidPhone, status: http.StatusBadRequest, code: codeInvalidPhone},
		{name: "rate limited", method: http.MethodPost, body: sendOTPRequest{Phone: "9876543210"}, err: domain.ErrRateLimited, status: http.StatusTooManyRequests, code: codeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleSendOTP(&fakeOTPService{sendErr: tt.err})(rec, jsonRequest(t, tt.method, "/otp/send", tt.body))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestHandleVerifyOTP(t *testing.T) {
	svc := &fakeOTPService{verifyResult: app.VerifyChallengeResult{
		Session: domain.Session{ID: "sess-1", SubjectID: "subj-1", AccessToken: "a", RefreshToken: "r"},
		Subject: domain.Subject{ID: "subj-1", PhoneKey: "+919876543210"},
	}}
	rec := httptest.NewRecorder()

	HandleVerifyOTP(svc)(rec, jsonRequest(t, http.MethodPost, "/otp/verify", verifyOTPRequest{Phone: "9876543210", Code: "123456"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", svc.code)
	body := decodeBody[verifyOTPResponse](t, rec)
	assert.Equal(t, "subj-1", body.SubjectID)
	assert.Equal(t, "a", body.Session.AccessToken)
	assert.Equal(t, "r", body.Session.RefreshToken)
}

func TestHandleVerifyOTP_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrChallengeNotFound, http.StatusNotFound, codeChallengeNotFound},
		{domain.ErrChallengeExpired, http.StatusConflict, codeExpired},
		{domain.ErrChallengeUsed, http.StatusConflict, codeAlreadyUsed},
		{domain.ErrCodeMismatch, http.StatusUnauthorized, codeInvalidCode},
		{domain.ErrMalformedCode, http.StatusBadRequest, codeInvalidCode},
		{domain.ErrTooManyAttempts, http.StatusTooManyRequests, codeTooManyAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleVerifyOTP(&fakeOTPService{verifyErr: tt.err})(rec,
				jsonRequest(t, http.MethodPost, "/otp/verify", verifyOTPRequest{Phone: "9876543210", Code: "000000"}))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}
