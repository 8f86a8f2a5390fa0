package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParamError
		expected string
	}{
		{
			name:     "code and message",
			err:      NewConfigError(ErrCodeMissingSecret, "secret key required"),
			expected: "[ERR_MISSING_SECRET] secret key required",
		},
		{
			name:     "with parameter",
			err:      NewConfigError(ErrCodeAliasCollision, "alias collides").WithParameter("quelle"),
			expected: "[ERR_ALIAS_COLLISION] parameter:quelle alias collides",
		},
		{
			name:     "with cause",
			err:      NewInternalError("ERR_X", "boom", errors.New("root")),
			expected: "[ERR_X] boom: root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestParamErrorIs(t *testing.T) {
	err := fmt.Errorf("load: %w", NewConfigError(ErrCodeDuplicateName, "duplicate"))

	assert.True(t, errors.Is(err, NewConfigError(ErrCodeDuplicateName, "")))
	assert.False(t, errors.Is(err, NewConfigError(ErrCodeAliasCollision, "")))
	assert.False(t, errors.Is(err, NewValidationError(ErrCodeDuplicateName, "")))
}

func TestTypePredicates(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", NewSessionError(ErrCodeSessionClosed, "closed"))

	assert.True(t, IsSessionError(wrapped))
	assert.False(t, IsConfigError(wrapped))
	assert.False(t, IsRecoverable(wrapped))
	assert.True(t, IsRecoverable(NewValidationError("ERR_V", "bad")))
	assert.True(t, IsValidationError(NewValidationError("ERR_V", "bad")))
	assert.False(t, IsConfigError(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidURL, "bad url").
		WithContext("url", "ftp://x").
		WithCause(errors.New("scheme"))

	require.NotNil(t, err.Context)
	assert.Equal(t, "ftp://x", err.Context["url"])
	assert.EqualError(t, err.Unwrap(), "scheme")
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, NewValidationError("ERR_V", "bad"))
	h.Handle(ctx, NewSessionError(ErrCodeSessionCapacity, "full"))
	h.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"Validation error occurred"}, logger.warns)
	assert.Equal(t, []string{"Error occurred", "Unhandled error occurred"}, logger.errors)
}
