package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const subjectKey contextKey = "subject"

var errNoBearer = errors.New("auth: missing bearer token")

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// token with 401 and stores the token subject in the request context.
//
// A nil TokenService disables the check, so the same router serves both
// secured and open configurations.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokens == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := extractSubject(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="journal"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid bearer token required"}`))
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated client name, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

// extractSubject reads the bearer token from the Authorization header. For
// EventSource clients, which cannot set headers, the access_token query
// parameter is accepted too.
func extractSubject(r *http.Request, tokens *TokenService) (string, error) {
	raw := ""
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", errNoBearer
		}
		raw = strings.TrimSpace(token)
	} else {
		raw = r.URL.Query().Get("access_token")
	}
	if raw == "" {
		return "", errNoBearer
	}
	return tokens.Validate(raw)
}
