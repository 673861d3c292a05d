package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
		wantMsg    string
	}{
		{"validation", NewValidationError("bad input"), ErrorTypeValidation, http.StatusBadRequest, "bad input"},
		{"not found", NewNotFoundError("node n1"), ErrorTypeNotFound, http.StatusNotFound, "node n1 not found"},
		{"conflict", NewConflictError("duplicate id"), ErrorTypeConflict, http.StatusConflict, "duplicate id"},
		{"unsupported", NewUnsupportedError("image", "label editing"), ErrorTypeUnsupported, http.StatusUnprocessableEntity, "image nodes do not support label editing"},
		{"unavailable", NewUnavailableError("dynamodb"), ErrorTypeUnavailable, http.StatusServiceUnavailable, "service 'dynamodb' is unavailable"},
		{"database", NewDatabaseError("upsert nodes", errors.New("boom")), ErrorTypeDatabase, http.StatusInternalServerError, "database operation 'upsert nodes' failed"},
		{"network", NewNetworkError("put events", errors.New("timeout")), ErrorTypeNetwork, http.StatusBadGateway, "put events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", NewNetworkError("x", nil), true},
		{"database", NewDatabaseError("select", nil), true},
		{"unavailable", NewUnavailableError("store"), true},
		{"validation", NewValidationError("x"), false},
		{"not found", NewNotFoundError("doc"), false},
		{"plain error", errors.New("plain"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("keeps the app error type", func(t *testing.T) {
		cause := errors.New("connection reset")
		wrapped := Wrap(NewNetworkError("select document", cause), "open board-1")

		appErr := GetAppError(wrapped)
		require.NotNil(t, appErr)
		assert.Equal(t, ErrorTypeNetwork, appErr.Type)
		assert.Equal(t, "open board-1: select document", appErr.Message)
		assert.ErrorIs(t, wrapped, cause)
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		wrapped := Wrapf(errors.New("boom"), "save %s", "board-1")

		assert.True(t, IsType(wrapped, ErrorTypeInternal))
		assert.Contains(t, wrapped.Error(), "save board-1")
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "ignored"))
	})
}
