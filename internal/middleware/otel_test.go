package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/internal/infrastructure"
	"deliverypulse/internal/shared/testutil"
)

func TestOTelMiddleware_RecordsRouteMetrics(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := infrastructure.DefaultOTelConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	providers, err := infrastructure.InitializeOTel(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { providers.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(NewOTelMiddleware(providers, metrics).Handler)
	router.Get("/api/dashboard/charts/{chart}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/charts/pie", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NotNil(t, providers.PrometheusHTTP)
	scrape := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	text, err := io.ReadAll(scrape.Body)
	require.NoError(t, err)

	assert.Contains(t, string(text), "http_requests_total")
	assert.Contains(t, string(text), `http_route="/api/dashboard/charts/{chart}"`)
}

func TestOTelMiddleware_NilProvidersAndMetrics(t *testing.T) {
	h := NewOTelMiddleware(nil, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
