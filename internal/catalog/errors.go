package catalog

import "errors"

var (
	// ErrInvalidRequest means a required parameter was missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMethodNotAllowed means a non-read verb was used.
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrUpstreamUnavailable covers network failures, non-success statuses,
	// timeouts and an open circuit on the Open Library side.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
