package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/internal/config"
	"deliverypulse/internal/shared/testutil"
)

func testConfig(t *testing.T, withRaw bool) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Source.AutoFetch = false
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second

	if withRaw {
		paths, err := cfg.ResolvePaths()
		require.NoError(t, err)
		testutil.WriteOlistFixture(t, paths.RawDir)
	}
	return cfg
}

func newTestApp(t *testing.T, withRaw bool) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	app, err := NewApplication(context.Background(), testConfig(t, withRaw), logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.OTelProviders.Shutdown(context.Background())
	})
	return app, logs
}

func serve(app *Application, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication_Wiring(t *testing.T) {
	app, logs := newTestApp(t, true)

	assert.NotNil(t, app.Dashboard)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.Metrics)
	assert.DirExists(t, app.Paths.ProcessedDir)
	assert.DirExists(t, app.Paths.LogsDir)
	assert.True(t, logs.ContainsMessage("Application starting"))
	assert.Equal(t, ":0", app.Server.Addr)
}

func TestRouter_Endpoints(t *testing.T) {
	app, _ := newTestApp(t, true)

	tests := []struct {
		name           string
		method         string
		target         string
		expectedStatus int
		expectedBody   string
	}{
		{"page", http.MethodGet, "/", http.StatusOK, "Delivery Performance Dashboard"},
		{"live", http.MethodGet, "/api/health/live", http.StatusOK, `"status":"alive"`},
		{"ready", http.MethodGet, "/api/health/ready", http.StatusOK, `"status":"ready"`},
		{"version", http.MethodGet, "/api/version", http.StatusOK, config.AppVersion},
		{"kpis", http.MethodGet, "/api/dashboard/kpis", http.StatusOK, `"total_orders":7`},
		{"filtered kpis", http.MethodGet, "/api/dashboard/kpis?state=SP", http.StatusOK, `"total_orders":2`},
		{"chart", http.MethodGet, "/api/dashboard/charts/map", http.StatusOK, `"scattermapbox"`},
		{"csv export", http.MethodGet, "/api/dashboard/export.csv", http.StatusOK, "order_id"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "go_goroutines"},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound, ""},
		{"wrong method", http.MethodDelete, "/api/dashboard/kpis", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.target)
			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestRouter_PageAppliesDatasetDateRange(t *testing.T) {
	app, _ := newTestApp(t, true)

	rec := serve(app, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	// o5 has no usable purchase timestamp and falls outside every date range
	assert.Contains(t, body, `<div class="kpi-value">6</div>`)
	assert.Contains(t, body, "<td>o1</td>")
	assert.NotContains(t, body, "<td>o5</td>")
	assert.Contains(t, body, `value="2017-01-05"`)
	assert.Contains(t, body, `value="2018-06-30"`)

	// The API keeps an open range unless dates are given
	rec = serve(app, http.MethodGet, "/api/dashboard/kpis")
	assert.Contains(t, rec.Body.String(), `"total_orders":7`)
	rec = serve(app, http.MethodGet, "/api/dashboard/kpis?start=2017-01-05&end=2018-06-30")
	assert.Contains(t, rec.Body.String(), `"total_orders":6`)
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	app, _ := newTestApp(t, true)

	rec := serve(app, http.MethodGet, "/api/health/live")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_MissingData(t *testing.T) {
	app, _ := newTestApp(t, false)

	rec := serve(app, http.MethodGet, "/api/dashboard/kpis")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Len(t, problem["missing_files"], len(config.RequiredCSVs))

	rec = serve(app, http.MethodGet, "/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), config.OrdersFile)

	rec = serve(app, http.MethodGet, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApplication_StartStop(t *testing.T) {
	app, logs := newTestApp(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))

	assert.Eventually(t, func() bool {
		return app.Dashboard.Status().Loaded
	}, 10*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		return logs.ContainsMessage("Fact table warm-up complete")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(context.Background()))
	assert.True(t, logs.ContainsMessage("Application shutdown complete"))
}

func TestPerformStartupHealthCheck(t *testing.T) {
	app, logs := newTestApp(t, false)

	require.NoError(t, app.performStartupHealthCheck(context.Background()))
	assert.True(t, logs.ContainsMessage("Raw dataset incomplete"))
	assert.True(t, logs.ContainsMessage("Startup health check passed"))

	for _, rec := range logs.GetRecords() {
		if rec.Message != "Raw dataset incomplete" {
			continue
		}
		missing, ok := rec.Attrs["missing"].([]string)
		require.True(t, ok)
		assert.Contains(t, missing, filepath.Join(app.Paths.RawDir, config.OrdersFile))
	}
}
