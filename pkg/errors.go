// Package pkg holds the small shared surface the rest of the server leans
// on: the domain error kinds and the acknowledgement result shape.
package pkg

import "errors"

// Domain-level errors. Services return these (possibly wrapped); the event
// router maps them to negative acknowledgements with a short message and
// never lets them reach the transport.
var (
	// ErrNotAuthenticated — operation attempted before JOIN_SERVER.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrPermissionDenied — the session's effective mask lacks the
	// required flag.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidInput — empty content, missing channel name, etc.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound — referenced channel/transport/consumer/producer absent.
	ErrNotFound = errors.New("not found")
	// ErrPreconditionFailed — wrong handshake order, wrong direction
	// transport, cannot consume a producer with the given capabilities.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrBackend — the durable store, presence store, or SFU raised an
	// internal error.
	ErrBackend = errors.New("backend failure")
)
