package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/neuroflux/backend/internal/api/response"
)

// Recoverer is a middleware that recovers from panics
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				log.Printf("[%s] PANIC: %v\n%s", requestID, rec, debug.Stack())
				response.InternalError(w, "")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
