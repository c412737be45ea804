package remote

import "errors"

var (
	// ErrRemoteRequest is returned when the backend answers with an
	// unexpected status code.
	ErrRemoteRequest = errors.New("unexpected response from remote backend")

	// ErrRemoteNotFound is returned when the backend answers 404.
	ErrRemoteNotFound = errors.New("resource not found on remote backend")

	// ErrRemoteUnauthorized is returned when the backend answers 401 or 403.
	ErrRemoteUnauthorized = errors.New("unauthorized against remote backend")
)
