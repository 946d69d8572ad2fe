package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidFileType, http.StatusBadRequest},
		{fmt.Errorf("lecture id: %w", ErrMissingField), http.StatusBadRequest},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrInvalidAPIKey, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("lecture L2: %w", ErrNoVideo), http.StatusNotFound},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUpstream, http.StatusBadGateway},
		{ErrStorageNotConfigured, http.StatusServiceUnavailable},
		{ErrProcessingFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestMessageStripsWrapping(t *testing.T) {
	err := fmt.Errorf("lecture 42: %w", ErrNotFound)
	assert.Equal(t, "not found", Message(err))
	assert.Equal(t, "", Message(errors.New("boom")))
}
