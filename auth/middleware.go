package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/transitcache/observe"
)

// Authenticate is HTTP middleware that authenticates every request with
// authn and stores the identity in the request context. Failures get 401
// with a WWW-Authenticate challenge; internal errors get 500.
func Authenticate(authn Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req := NewAuthRequest(r)

			result, err := authn.Authenticate(ctx, req)
			if err != nil {
				logger.Error(ctx, "authentication error", observe.F("path", req.Path), observe.Err(err))
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if !result.Authenticated {
				logger.Warn(ctx, "authentication failed",
					observe.F("path", req.Path),
					observe.F("method", result.Method),
					observe.Err(result.Error),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="transitcache"`)
				writeError(w, http.StatusUnauthorized, publicMessage(result.Error))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, result.Identity)))
		})
	}
}

// Require is HTTP middleware that checks the context identity against
// action. It must run after Authenticate.
func Require(authz Authorizer, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := authz.Authorize(r.Context(), IdentityFromContext(r.Context()), action)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrForbidden):
				writeError(w, http.StatusForbidden, "forbidden")
			default:
				writeError(w, http.StatusInternalServerError, "authorization unavailable")
			}
		})
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return "missing credentials"
	case errors.Is(err, ErrTokenExpired):
		return "credentials expired"
	default:
		return "invalid credentials"
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
