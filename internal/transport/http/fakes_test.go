package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/domain"
)

const testAdminToken = "operator-secret"

// fakeAuthenticator accepts tokens listed in principals.
type fakeAuthenticator struct {
	principals map[string]app.Principal
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (app.Principal, error) {
	p, ok := f.principals[token]
	if !ok {
		return app.Principal{}, domain.ErrInvalidSession
	}
	return p, nil
}

var testAuth = fakeAuthenticator{principals: map[string]app.Principal{
	"tok-alice": {SubjectID: "subj-alice", SessionID: "sess-alice"},
	"tok-bob":   {SubjectID: "subj-bob", SessionID: "sess-bob"},
}}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func withAdmin(req *http.Request) *http.Request {
	req.Header.Set(adminTokenHeader, testAdminToken)
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorResponse](t, rec).Code
}
