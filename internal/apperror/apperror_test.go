package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{InvalidOperation("x"), http.StatusBadRequest},
		{Unauthenticated("x"), http.StatusUnauthorized},
		{NotFound("x"), http.StatusNotFound},
		{Forbidden("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{InvalidArgument("x"), http.StatusUnprocessableEntity},
		{RateLimited("x"), http.StatusTooManyRequests},
		{Internal("op", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestForbiddenIsIndistinguishableToClients(t *testing.T) {
	req := require.New(t)
	hidden := Forbidden("Chat not found")
	missing := NotFound("Chat not found")

	req.Equal(Status(missing), Status(hidden))
	req.Equal(Message(missing), Message(hidden))
	req.True(IsForbidden(hidden))
	req.False(IsForbidden(missing))
}

func TestInternalHidesCauseButUnwraps(t *testing.T) {
	req := require.New(t)
	cause := errors.New("connection reset")
	err := fmt.Errorf("handler: %w", Internal("chat.Create", cause))

	req.Equal("internal server error", Message(err))
	req.ErrorIs(err, cause)
	req.Equal(KindInternal, KindOf(err))
	req.Contains(err.Error(), "chat.Create")
}
