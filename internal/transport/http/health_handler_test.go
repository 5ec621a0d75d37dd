package http

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/internal/config"
	"deliverypulse/internal/services"
	"deliverypulse/internal/shared/testutil"
)

func newHealthRouter(t *testing.T, status services.DataStatus) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := new(MockDashboardService)
	svc.On("Status").Return(status)

	handler := NewHealthHandler(services.NewHealthService("1.2.3", svc, logger), logger)
	r := chi.NewRouter()
	r.Mount("/api/health", handler.Routes())
	r.Get("/api/version", handler.Version)
	return r
}

func TestHealthHandler_Endpoints(t *testing.T) {
	router := newHealthRouter(t, services.DataStatus{Loaded: true, Rows: 7})

	tests := []struct {
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{"/api/health/", http.StatusOK, `"status":"ok"`},
		{"/api/health/ready", http.StatusOK, `"status":"ready"`},
		{"/api/health/live", http.StatusOK, `"status":"alive"`},
		{"/api/health/detailed", http.StatusOK, `"rows":7`},
		{"/api/version", http.StatusOK, "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.path)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	router := newHealthRouter(t, services.DataStatus{
		RawDir:       t.TempDir(),
		MissingFiles: []string{config.OrdersFile},
	})

	rec := do(t, router, http.MethodGet, "/api/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Contains(t, rec.Body.String(), "missing raw files: "+config.OrdersFile)

	rec = do(t, router, http.MethodGet, "/api/health/live")
	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores data state")
}
