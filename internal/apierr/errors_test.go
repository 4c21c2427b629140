package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExecutionFailed_MessageSurfacesCause(t *testing.T) {
	cause := errors.New("API 503")
	err := NewExecutionFailed(cause)

	assert.Equal(t, KindExecutionFailed, err.Kind)
	assert.Equal(t, "API 503", err.Message, "client-facing message must be the executor's own error text")
	assert.ErrorIs(t, err, cause)
}

func TestNewExecutionFailed_NilCause(t *testing.T) {
	err := NewExecutionFailed(nil)
	assert.Equal(t, "the action's executor failed", err.Message)
	assert.Nil(t, err.Unwrap())
}

func TestConfirmationError_WithRequestID(t *testing.T) {
	err := NewInvalidAction().WithRequestID("req_abc123")
	assert.Equal(t, "req_abc123", err.RequestID)
}

func TestConfirmationError_HTTPStatus(t *testing.T) {
	assert.Equal(t, 400, NewValidationError("bad input").HTTPStatus())
	assert.Equal(t, 403, NewPermissionDenied().HTTPStatus())
	assert.Equal(t, 404, NewInvalidAction().HTTPStatus())
	assert.Equal(t, 502, NewExecutionFailed(errors.New("boom")).HTTPStatus())
	assert.Equal(t, 503, NewCacheUnavailable(errors.New("down")).HTTPStatus())
}
