package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuroflux/backend/internal/models"
)

type fakeSettings struct {
	maintenance bool
	err         error
}

func (f *fakeSettings) Get(ctx context.Context) (*models.GlobalSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.GlobalSettings{MaintenanceMode: f.maintenance}, nil
}

func runMaintenance(settings *fakeSettings) *httptest.ResponseRecorder {
	handler := Maintenance(settings)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestMaintenanceOff(t *testing.T) {
	rec := runMaintenance(&fakeSettings{maintenance: false})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaintenanceOn(t *testing.T) {
	rec := runMaintenance(&fakeSettings{maintenance: true})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "maintenance")
}

func TestMaintenanceFailsOpen(t *testing.T) {
	rec := runMaintenance(&fakeSettings{err: errors.New("store down")})
	assert.Equal(t, http.StatusOK, rec.Code, "a settings read failure must not take the API down")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"x-forwarded-for single", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "9.9.9.9:1234", "1.2.3.4"},
		{"x-forwarded-for list", map[string]string{"X-Forwarded-For": "1.2.3.4,5.6.7.8"}, "9.9.9.9:1234", "1.2.3.4"},
		{"x-real-ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "9.9.9.9:1234", "5.6.7.8"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
