package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/coppice-labs/switchboard/internal/apierr"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/metrics"
)

// Middleware creates HTTP middleware for bearer-token authentication.
// When the authenticator has enforcement disabled, requests pass through
// untouched.
func Middleware(authn *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authn.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, apierr.New(apierr.CodeAuthFailed, "Authentication required (Bearer token)"))
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			ac, err := authn.Validate(token)
			if err != nil {
				logger.Info("Token validation failed for %s", MaskToken(token))
				writeError(w, err)
				return
			}

			ctx := WithContext(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware enforces the per-token sliding-window quota.
// Must be applied AFTER Middleware (needs the token from context). When auth
// is disabled the remote address is used as the key so the quota still holds.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if ac := FromContext(r.Context()); ac != nil && ac.Token != "" {
				key = ac.Token
			}

			if err := limiter.Allow(key); err != nil {
				metrics.RecordRateLimitRejection()
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AddrLimitMiddleware applies the address-keyed token bucket, used on
// endpoints that never see a bearer token.
func AddrLimitMiddleware(limiter *AddrLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.RemoteAddr) {
				metrics.RecordRateLimitRejection()
				writeError(w, apierr.RateLimited(1))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := apierr.Response(err)
	w.Header().Set("Content-Type", "application/json")
	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	w.WriteHeader(apierr.CodeOf(err).HTTPStatus())
	_ = json.NewEncoder(w).Encode(resp)
}
