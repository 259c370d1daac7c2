package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrNotFound.WithDetail("id", 7)

	assert.Equal(t, 7, err.Details["id"])
	assert.Nil(t, ErrNotFound.Details)
}

func TestError_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		status    int
	}{
		{"validation", ErrValidation.WithCause(fmt.Errorf("bad")), false, http.StatusBadRequest},
		{"not found", ErrNotFound, false, http.StatusNotFound},
		{"unavailable", ErrServiceUnavailable, true, http.StatusServiceUnavailable},
		{"rate limited", ErrRateLimited, true, http.StatusTooManyRequests},
		{"forced fatal", ErrUpstream.AsFatal(), false, http.StatusBadGateway},
		{"plain error", fmt.Errorf("x"), false, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *Error
			if stderrors.As(tt.err, &appErr) {
				assert.Equal(t, tt.retryable, appErr.IsRetryable())
			}
			assert.Equal(t, tt.status, ToHTTPStatus(tt.err))
		})
	}
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading rules: %w", ErrNotFound.WithDetail("id", 1))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.True(t, stderrors.Is(err, ErrNotFound))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrConflict.WithDetail("name", "dup"))
	assert.Equal(t, "CONFLICT", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"name": "dup"}, resp["details"])

	resp = ToErrorResponse(fmt.Errorf("raw"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "validation failed: name is required",
		PublicMessage(Wrap(fmt.Errorf("name is required"), ErrValidation)))
	assert.Equal(t, "service unavailable", PublicMessage(ErrServiceUnavailable.WithCause(fmt.Errorf("dial"))))
	assert.Equal(t, "internal server error", PublicMessage(fmt.Errorf("secret")))
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
	var appErr *Error
	require.True(t, stderrors.As(err, &appErr))
	assert.True(t, appErr.IsFatal())
}
