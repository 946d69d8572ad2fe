// Package errs holds the pipeline's domain sentinel errors and their HTTP mapping.
package errs

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidInput    = errors.New("invalid input")

	ErrNotFound = errors.New("not found")
	ErrNoVideo  = errors.New("no video available for this lecture")

	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrForbidden       = errors.New("admin access required")
	ErrAuthFailure     = errors.New("authentication failed")
	ErrRateLimited     = errors.New("rate limit exceeded")

	ErrSigningUnavailable   = errors.New("stream signing unavailable")
	ErrStorageNotConfigured = errors.New("storage host not configured")
	ErrUpstream             = errors.New("upstream service error")

	ErrProcessingFailed = errors.New("failed to process video")

	ErrInvalidAPIKey = errors.New("invalid api key")
	ErrInvalidStatus = errors.New("invalid status")
	ErrConflict      = errors.New("conflict")
)

var public = []error{
	ErrInvalidFileType, ErrFileTooLarge, ErrMissingField, ErrInvalidInput,
	ErrNotFound, ErrNoVideo,
	ErrUnauthenticated, ErrInvalidToken, ErrForbidden, ErrAuthFailure, ErrRateLimited,
	ErrSigningUnavailable, ErrStorageNotConfigured, ErrUpstream,
	ErrProcessingFailed, ErrInvalidAPIKey, ErrInvalidStatus, ErrConflict,
}

// Message returns the text of the sentinel err wraps, or "" if it wraps none.
func Message(err error) string {
	for _, e := range public {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return ""
}

// HTTPStatus maps an error to the response status code. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidFileType), errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoVideo):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrSigningUnavailable), errors.Is(err, ErrStorageNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
