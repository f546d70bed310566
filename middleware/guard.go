package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quantfolio/sessionauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity stashed by a guard, if any.
func AuthResultFromContext(ctx context.Context) (*sessionauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessionauth.AuthResult)
	return res, ok
}

// Guard validates the bearer token with the given mode before passing the
// request on. Any validation failure is a bare 401.
func Guard(issuer *sessionauth.Issuer, mode sessionauth.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if issuer == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := issuer.Validate(r.Context(), token, mode)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireJWTOnly enforces stateless signature+expiry validation.
func RequireJWTOnly(issuer *sessionauth.Issuer) func(http.Handler) http.Handler {
	return Guard(issuer, sessionauth.ModeJWTOnly)
}

// RequireStrict enforces validation with a session liveness check.
func RequireStrict(issuer *sessionauth.Issuer) func(http.Handler) http.Handler {
	return Guard(issuer, sessionauth.ModeStrict)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
