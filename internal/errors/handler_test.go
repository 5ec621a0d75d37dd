package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/internal/exporter"
	"deliverypulse/internal/loader"
	"deliverypulse/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewErrorHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	handler := NewErrorHandler(logger, true)
	assert.True(t, handler.includeStack)
	assert.NotNil(t, handler.logger)
}

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)
	missing := &loader.MissingFilesError{Dir: "data/raw", Files: []string{"olist_orders_dataset.csv"}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"canceled wrapped", fmt.Errorf("build: %w", context.Canceled), http.StatusGatewayTimeout, TypeTimeout},
		{"api validation", ErrValidation("end", "before start"), http.StatusBadRequest, TypeValidation},
		{"api data unavailable", ErrDataUnavailable, http.StatusServiceUnavailable, TypeDataMissing},
		{"api build failed", ErrBuildFailed, http.StatusInternalServerError, TypeBuildFailed},
		{"api build error", BuildError(errors.New("no tables")), http.StatusInternalServerError, TypeBuildFailed},
		{"api not found", New(http.StatusNotFound, "NOT_FOUND", "unknown chart"), http.StatusNotFound, TypeNotFound},
		{"api invalid parameter", New(http.StatusBadRequest, "INVALID_PARAMETER", "page out of range"), http.StatusBadRequest, TypeValidation},
		{"missing files", missing, http.StatusServiceUnavailable, TypeDataMissing},
		{"missing files sentinel", fmt.Errorf("load: %w", loader.ErrMissingFiles), http.StatusServiceUnavailable, TypeDataMissing},
		{"no source", fmt.Errorf("%w: %w", loader.ErrNoSource, missing), http.StatusServiceUnavailable, TypeDataMissing},
		{"missing column", fmt.Errorf("orders: %w", loader.ErrMissingColumn), http.StatusInternalServerError, TypeDataCorrupted},
		{"export format", fmt.Errorf("%w: %q", exporter.ErrUnsupportedFormat, "json"), http.StatusBadRequest, TypeValidation},
		{"app network", NewNetworkError("download failed", errors.New("eof")), http.StatusBadGateway, TypeBadGateway},
		{"app parsing", NewParsingError("bad csv", nil), http.StatusInternalServerError, TypeDataCorrupted},
		{"app storage", NewStorageError("cache", nil), http.StatusInternalServerError, TypeStorage},
		{"app missing data", NewMissingDataError(missing.Files, missing), http.StatusServiceUnavailable, TypeDataMissing},
		{"string not found", errors.New("chart not found"), http.StatusNotFound, TypeNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/dashboard/kpis", nil)
			problem := handler.ErrorToProblem(tt.err, r)

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/dashboard/kpis", problem.Instance)
		})
	}
}

func TestErrorHandler_MissingFilesExtension(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	files := []string{"olist_orders_dataset.csv", "olist_geolocation_dataset.csv"}
	problem := handler.ErrorToProblem(&loader.MissingFilesError{Dir: "raw", Files: files}, r)
	assert.Equal(t, files, problem.Extensions["missing_files"])
	assert.Equal(t, ErrDataUnavailable.ErrorCode, problem.Extensions["error_code"])
	assert.Equal(t, ErrDataUnavailable.Message, problem.Detail)

	// AppError without context falls back to the wrapped loader error
	appErr := NewAppError(ErrTypeMissingData, "missing", &loader.MissingFilesError{Files: files})
	problem = handler.ErrorToProblem(appErr, r)
	assert.Equal(t, files, problem.Extensions["missing_files"])
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
		assert.Equal(t, 0, w.Body.Len())
	})

	t.Run("server error logged at error level", func(t *testing.T) {
		logs.Clear()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/dashboard/rebuild", nil)
		r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-1"))

		handler.HandleError(w, r, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeProblem(t, w)
		assert.Equal(t, TypeInternal, body["type"])
		assert.Equal(t, "req-1", body["trace_id"])
		assert.NotContains(t, body, "stack")
		testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
	})

	t.Run("client error logged at warn level", func(t *testing.T) {
		logs.Clear()
		w := httptest.NewRecorder()
		handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), New(http.StatusBadRequest, "INVALID_PARAMETER", "page out of range"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_PARAMETER", decodeProblem(t, w)["error_code"])
		testutil.AssertLogContains(t, logs, slog.LevelWarn, "request failed")
		assert.True(t, logs.ContainsAttr("status", int64(400)))
	})
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))
	assert.Contains(t, decodeProblem(t, w), "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	handler.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/geo", nil), "nil map")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, "nil map", body["panic"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/nope", decodeProblem(t, w)["instance"])

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/dashboard/kpis", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decodeProblem(t, w)["detail"], "DELETE")
}

func TestGetStackTrace(t *testing.T) {
	assert.Contains(t, getStackTrace(), "goroutine")
}
