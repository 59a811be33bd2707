package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("wrapped cause is reachable", func(t *testing.T) {
		cause := errors.New("dial tcp: refused")
		err := fmt.Errorf("list messages: %w", Unavailable("backend unreachable", cause))

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, CodeUnavailable, CodeOf(err))
		assert.True(t, IsRetryable(err))
		assert.Contains(t, err.Error(), "dial tcp: refused")
	})

	t.Run("sentinel matches by code and message", func(t *testing.T) {
		sentinel := InvalidArg("message content is empty")
		err := fmt.Errorf("send: %w", InvalidArg("message content is empty"))

		assert.ErrorIs(t, err, sentinel)
		assert.NotErrorIs(t, err, InvalidArg("something else"))
		assert.False(t, IsRetryable(err))
	})

	t.Run("plain errors have unknown code", func(t *testing.T) {
		assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
	})
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("conversation not found")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthorized("token expired")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))

	assert.Equal(t, CodeInvalidArgument, FromStatus(http.StatusBadRequest))
	assert.Equal(t, CodeUnavailable, FromStatus(http.StatusBadGateway))
	assert.Equal(t, CodeUnknown, FromStatus(http.StatusTeapot))
}
