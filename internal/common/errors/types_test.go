package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	err := ValidationError("cache key must not be empty")
	assert.Equal(t, "validation: cache key must not be empty", err.Error())

	cause := stderrors.New("connection refused")
	backendErr := BackendError("failed to put entry", cause)
	assert.Contains(t, backendErr.Error(), "backend: failed to put entry")
	assert.Contains(t, backendErr.Error(), "cause=connection refused")
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := BackendError("write failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestAppErrorWithContext(t *testing.T) {
	err := NotFoundError("key not found").WithContext("key", "user:1")
	assert.Contains(t, err.Error(), "key=user:1")
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(CapacityError("over capacity"), ErrTypeCapacity))
	assert.False(t, IsType(CapacityError("over capacity"), ErrTypeBackend))
	assert.False(t, IsType(stderrors.New("plain"), ErrTypeBackend))
	assert.False(t, IsType(nil, ErrTypeBackend))

	// Wrapped AppErrors still match.
	wrapped := fmt.Errorf("during sweep: %w", BackendError("query failed", nil))
	assert.True(t, IsType(wrapped, ErrTypeBackend))
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err  *AppError
		want ErrorType
	}{
		{BackendError("m", nil), ErrTypeBackend},
		{CapacityError("m"), ErrTypeCapacity},
		{ValidationError("m"), ErrTypeValidation},
		{ConfigError("m"), ErrTypeConfig},
		{SerializationError("m", nil), ErrTypeSerialization},
		{NotFoundError("m"), ErrTypeNotFound},
		{InternalError("m", nil), ErrTypeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Type)
	}
}
