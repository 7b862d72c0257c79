package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("client %d not found", 3), http.StatusNotFound},
		{Validation("username is required"), http.StatusBadRequest},
		{Conflict("name taken"), http.StatusConflict},
		{Unauthorized("bad credentials"), http.StatusUnauthorized},
		{Forbidden("role"), http.StatusForbidden},
		{TransientIO(errors.New("disk"), "write"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("create client: %w", Conflict("username %q already exists", "ana"))
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, `username "ana" already exists`, Message(err))
	assert.False(t, Is(nil, KindConflict))
}

func TestMessage_HidesInternals(t *testing.T) {
	assert.Equal(t, "internal error", Message(errors.New("pq: relation does not exist")))
	assert.Equal(t, "internal error", Message(TransientIO(errors.New("EIO"), "read source")))

	cause := errors.New("EIO")
	assert.ErrorIs(t, TransientIO(cause, "read"), cause)
}
