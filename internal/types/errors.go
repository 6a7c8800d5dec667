package types

import "errors"

// Outcome kinds returned by the services. Handlers map them to status codes with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	// ErrConfiguration means the server is missing setup it needs (e.g. token signing config).
	// It is an operator problem and is never reported to the caller as a client error.
	ErrConfiguration = errors.New("server configuration error")
)
