package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/neuroflux/backend/internal/api/response"
	"github.com/neuroflux/backend/internal/models"
)

// SettingsReader returns the current global settings
type SettingsReader interface {
	Get(ctx context.Context) (*models.GlobalSettings, error)
}

// Maintenance short-circuits requests with 503 while maintenance mode is on.
// Mounted on the public and user route groups only; administrative routes
// stay reachable so the mode can be turned off again.
func Maintenance(settings SettingsReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current, err := settings.Get(r.Context())
			if err != nil {
				// Fail open: a settings read failure must not take the API down.
				log.Printf("[maintenance] settings read failed: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			if current.MaintenanceMode {
				response.Error(w, http.StatusServiceUnavailable, "maintenance",
					"The system is undergoing maintenance. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
