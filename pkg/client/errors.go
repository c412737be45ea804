package client

import "errors"

var (
	// ErrUnauthorized is returned when the request is not authorized.
	ErrUnauthorized = errors.New("control plane api received unauthorized request")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when the resource is pending or in use.
	ErrConflict = errors.New("resource conflict")

	// ErrBadRequest is returned when the control plane rejects the payload.
	ErrBadRequest = errors.New("control plane rejected request")

	// ErrAPIError is returned for any other http error response.
	ErrAPIError = errors.New("control plane api http error")
)
