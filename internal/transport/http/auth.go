package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cimillas/storefront-core/internal/app"
	"github.com/cimillas/storefront-core/internal/domain"
)

const adminTokenHeader = "X-Admin-Token"

// SessionAuthenticator resolves a bearer access token to its principal.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (app.Principal, error)
}

type principalKey struct{}

// PrincipalFrom returns the principal RequireSession stored on the context.
func PrincipalFrom(ctx context.Context) (app.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(app.Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p app.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// RequireSession rejects requests without a valid bearer token.
func RequireSession(auth SessionAuthenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := authenticate(w, r, auth)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func authenticate(w http.ResponseWriter, r *http.Request, auth SessionAuthenticator) (app.Principal, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return app.Principal{}, false
	}
	p, err := auth.Authenticate(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return app.Principal{}, false
	}
	return p, true
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AdminOnly guards operator endpoints with a shared token. An empty token
// disables them.
func AdminOnly(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r, token) {
			writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdmin(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got := r.Header.Get(adminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// SessionManager refreshes and ends sessions.
type SessionManager interface {
	Refresh(ctx context.Context, refreshToken string) (domain.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// HandleRefresh exchanges a refresh token for a new token pair.
func HandleRefresh(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req refreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "refresh_token is required")
			return
		}

		sess, err := svc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// HandleLogout ends the caller's session. It must run behind RequireSession.
func HandleLogout(svc SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, domain.ErrInvalidSession.Error())
			return
		}
		if err := svc.Logout(r.Context(), p.SessionID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
