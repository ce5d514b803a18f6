package middleware

import (
	"log"
	"net/http"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/ratelimit"
)

// RateLimit rejects requests from clients exceeding the configured rate.
// A limiter backend failure fails open: availability wins over strictness.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), ClientIP(r))
			if err != nil {
				log.Printf("[ratelimit] limiter error: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				response.Error(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	// X-Forwarded-For is set by proxies and load balancers
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
		if ip[i] == ']' {
			// IPv6 address
			break
		}
	}
	return ip
}
