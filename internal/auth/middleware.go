package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the HttpOnly cookie carrying the session token.
const CookieName = "token"

// LoginRedirect is where the UI sends an unauthenticated user. The redirect
// query brings them back to the generator afterwards.
const LoginRedirect = "/login?redirect=/"

var errNoToken = errors.New("auth: no session token")

// contextKey is unexported so no other package can read or shadow the
// values stored under it.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "token" cookie (or an "Authorization: Bearer"
// header), validates it, and stores the userID in the request context. If the
// token is missing or invalid it answers 401 with errorKind NotAuthenticated
// and the login redirect, and stops the chain.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"errorKind": "NotAuthenticated",
					"message":   "Please sign in to generate excuses.",
					"redirect":  LoginRedirect,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth extracts the user identity if a valid token is present, but
// does NOT block the request if it's missing or invalid.
//
// Handlers check for the user via UserIDFromContext; ("", false) means the
// request is anonymous.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil && userID != "" {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. Handler tests use it to
// skip the middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous (no valid token was present).
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID reads the session token and validates it. The cookie wins
// when both a cookie and a Bearer header are sent.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return tokens.Validate(cookie.Value)
	}

	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return tokens.Validate(strings.TrimSpace(token))
		}
	}

	return "", errNoToken
}
