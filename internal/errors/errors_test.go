package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	assert.Equal(t, "Resource not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.ErrorCode)
}

func TestNewWithDetails(t *testing.T) {
	err := NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "bad", "url is empty")
	assert.Equal(t, "url is empty", err.Details)
}

func TestPredefinedErrors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrJobNotFound.StatusCode)
	assert.Equal(t, http.StatusConflict, ErrNotReady.StatusCode)
	assert.Equal(t, "NOT_READY", ErrNotReady.ErrorCode)
	assert.Equal(t, http.StatusBadRequest, ErrInvalidRequest.StatusCode)
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("max_leads", "must be between 1 and 5000")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	detail, ok := err.Details.(ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "max_leads", detail.Field)
}

func TestNotReadyError(t *testing.T) {
	err := NotReadyError("job-123")
	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.Equal(t, "job-123", err.Details)
}
