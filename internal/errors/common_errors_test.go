package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliverypulse/internal/loader"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "with cause",
			err:      NewStorageError("cache write failed", errors.New("disk full")),
			expected: "[STORAGE] cache write failed: disk full",
		},
		{
			name:     "without cause",
			err:      NewAppError(ErrTypeParsing, "orders header unreadable", nil),
			expected: "[PARSING] orders header unreadable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := &loader.MissingFilesError{Dir: "data/raw", Files: []string{"olist_orders_dataset.csv"}}
	err := fmt.Errorf("dashboard: %w", NewMissingDataError(cause.Files, cause))

	assert.ErrorIs(t, err, loader.ErrMissingFiles)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrTypeMissingData, appErr.Type)
	assert.Equal(t, []string{"olist_orders_dataset.csv"}, appErr.Context["missing_files"])
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeNetwork, Message: "download failed"}
	err.WithContext("url", "https://example.com/olist.zip").WithContext("status", 404)

	assert.Equal(t, "https://example.com/olist.zip", err.Context["url"])
	assert.Equal(t, 404, err.Context["status"])
}

func TestConstructorsSetTypes(t *testing.T) {
	cause := errors.New("x")
	tests := map[ErrorType]*AppError{
		ErrTypeNetwork:     NewNetworkError("m", cause),
		ErrTypeParsing:     NewParsingError("m", cause),
		ErrTypeStorage:     NewStorageError("m", cause),
		ErrTypeMissingData: NewMissingDataError(nil, cause),
	}

	for want, err := range tests {
		assert.Equal(t, want, err.Type)
		assert.NotNil(t, err.Context)
	}
}
