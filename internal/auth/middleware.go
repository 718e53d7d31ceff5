package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"ms-registration/internal/logger"
	"ms-registration/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Middleware rejects requests without a valid bearer token and stores the
// caller's principal in the request context.
func Middleware(v Verifier, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				l.LogSecurity("TOKEN", err.Error())
				utils.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			who := claims.Principal()
			if who == "" {
				utils.WriteError(w, http.StatusUnauthorized, "token has no usable principal")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), who)))
		})
	}
}

// APIKey guards machine routes (form webhooks, admin tasks) with a static key header.
func APIKey(header, key string, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				l.LogSecurity("APIKEY", r.Method+" "+r.URL.Path+" rejected")
				utils.WriteError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, who string) context.Context {
	return context.WithValue(ctx, principalKey, who)
}

// Principal returns the authenticated caller, or "" outside an authenticated request.
func Principal(ctx context.Context) string {
	if who, ok := ctx.Value(principalKey).(string); ok {
		return who
	}
	return ""
}
