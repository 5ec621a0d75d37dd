package errors

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"deliverypulse/internal/shared/testutil"
)

func TestErrorMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		target     string
		wantStatus int
		wantLevel  slog.Level
	}{
		{
			name:       "successful request",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) },
			target:     "/api/dashboard/kpis?state=SP",
			wantStatus: http.StatusOK,
			wantLevel:  slog.LevelInfo,
		},
		{
			name:       "client error",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			target:     "/api/dashboard/orders?page=0",
			wantStatus: http.StatusBadRequest,
			wantLevel:  slog.LevelWarn,
		},
		{
			name:       "server error",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			target:     "/",
			wantStatus: http.StatusServiceUnavailable,
			wantLevel:  slog.LevelError,
		},
		{
			name:       "panic becomes problem",
			handler:    func(w http.ResponseWriter, r *http.Request) { panic("kaboom") },
			target:     "/api/dashboard/geo",
			wantStatus: http.StatusInternalServerError,
			wantLevel:  slog.LevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

			w := httptest.NewRecorder()
			mw.Handler(tt.handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			testutil.AssertLogContains(t, logs, tt.wantLevel, "http request")
			assert.True(t, logs.ContainsAttr("status", int64(tt.wantStatus)))
		})
	}
}

func TestErrorMiddleware_LogsQuery(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mw.Handler(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard/kpis?state=SP&delivered_only=true", nil))

	assert.True(t, logs.ContainsAttr("query", "state=SP&delivered_only=true"))
	assert.True(t, logs.ContainsAttr("component", "error_middleware"))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	recovery := RecoveryMiddleware(NewErrorHandler(logger, false))

	w := httptest.NewRecorder()
	recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), TypeInternal)
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")

	w = httptest.NewRecorder()
	recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecoveryMiddleware_AbortHandlerPropagates(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	recovery := RecoveryMiddleware(NewErrorHandler(logger, false))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
