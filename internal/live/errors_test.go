package live

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Format(t *testing.T) {
	cause := errors.New("boom")
	err := &RuntimeError{
		Code:       ErrCodeSubscribeFailed,
		Message:    "adapter subscription failed",
		WatchID:    "w-1",
		Collection: "tasks",
		Err:        cause,
	}
	assert.Equal(t, "SUBSCRIBE_FAILED: adapter subscription failed (collection=tasks, watch=w-1): boom", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := &RuntimeError{Code: ErrCodeUnknownWatch, Message: "no such watch"}
	assert.Equal(t, "UNKNOWN_WATCH: no such watch", bare.Error())
}

func TestRuntimeError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", &RuntimeError{Code: ErrCodeStopped})
	assert.True(t, IsStopped(wrapped))
	assert.False(t, IsSubscribeError(wrapped))
	assert.False(t, IsUnknownWatch(errors.New("plain")))
}
