package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenkb/lumen/internal/domain"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()

	Success(rec, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "value", data["key"])
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, http.StatusBadRequest, "something went wrong")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "something went wrong", resp.Error)
}

func TestJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", domain.ErrEmptyTurn, http.StatusBadRequest},
		{"not found", domain.ErrSessionNotFound, http.StatusNotFound},
		{"unauthorized", domain.ErrInvalidToken, http.StatusUnauthorized},
		{"unavailable", domain.ErrGenerationFailed, http.StatusBadGateway},
		{"internal code", domain.NewDomainError(domain.ErrCodeInternalError, "boom"), http.StatusInternalServerError},
		{"unknown code", domain.NewDomainError("UNKNOWN", "boom"), http.StatusInternalServerError},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestDomainErrorToHTTP_WrappedError(t *testing.T) {
	// Services wrap domain errors with extra detail; the mapping must see
	// through the wrapping.
	wrapped := fmt.Errorf("%w: %v", domain.ErrGenerationFailed, errors.New("model overloaded"))

	assert.Equal(t, http.StatusBadGateway, DomainErrorToHTTP(wrapped))
}

func TestHandleError(t *testing.T) {
	rec := httptest.NewRecorder()

	HandleError(rec, domain.ErrSessionNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "session has no conversation turns")
}
