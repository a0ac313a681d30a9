package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_OK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]Check
		status int
		report map[string]string
	}{
		{
			name:   "all healthy",
			checks: map[string]Check{"postgres": ok, "redis": ok},
			status: http.StatusOK,
			report: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:   "redis down",
			checks: map[string]Check{"postgres": ok, "redis": down},
			status: http.StatusServiceUnavailable,
			report: map[string]string{"postgres": "ok", "redis": "connection refused"},
		},
		{
			name:   "no checks",
			checks: map[string]Check{},
			status: http.StatusOK,
			report: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadyHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.report, decodeBody[map[string]string](t, rec))
		})
	}
}
