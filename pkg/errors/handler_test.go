package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name        string
		debug       bool
		err         error
		wantStatus  int
		wantType    ErrorType
		wantMessage string
	}{
		{
			name:        "app error keeps its status",
			err:         NewNotFoundError("open document board-1"),
			wantStatus:  http.StatusNotFound,
			wantType:    ErrorTypeNotFound,
			wantMessage: "open document board-1 not found",
		},
		{
			name:        "plain error is hidden",
			err:         errors.New("secret detail"),
			wantStatus:  http.StatusInternalServerError,
			wantType:    ErrorTypeInternal,
			wantMessage: "An internal error occurred",
		},
		{
			name:        "plain error shown in debug",
			debug:       true,
			err:         errors.New("secret detail"),
			wantStatus:  http.StatusInternalServerError,
			wantType:    ErrorTypeInternal,
			wantMessage: "secret detail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			h := NewErrorHandler(zap.NewNop(), tt.debug)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/board-1/", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rec := httptest.NewRecorder()

			// Act
			h.Handle(rec, req, tt.err)

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.True(t, body.Error)
			assert.Equal(t, string(tt.wantType), body.Type)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestErrorHandler_LogLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewErrorHandler(zap.New(core), false)
	req := httptest.NewRequest(http.MethodPost, "/save", nil)

	h.Handle(httptest.NewRecorder(), req, NewValidationError("bad"))
	h.Handle(httptest.NewRecorder(), req, NewNetworkError("store down", errors.New("eof")))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestErrorHandler_MiddlewareRecoversPanics(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	handler := h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil node")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(ErrorTypeInternal), body.Type)
}
