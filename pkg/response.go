package pkg

import "errors"

// Result is the acknowledgement payload for ack-carrying events:
// {success: bool, error?: string, ...} with any handler-specific fields
// merged in at the top level.
type Result map[string]any

// OK builds a successful acknowledgement.
func OK() Result {
	return Result{"success": true}
}

// Fail builds a negative acknowledgement carrying err's short message.
func Fail(err error) Result {
	return Result{"success": false, "error": ShortMessage(err)}
}

// With merges a handler-specific field into the result and returns it, so
// acks can be built fluently: pkg.OK().With("serverId", id).
func (r Result) With(key string, value any) Result {
	r[key] = value
	return r
}

// ShortMessage reduces err to the short, client-safe message a negative
// acknowledgement carries. Known domain errors keep their full chain text;
// anything else is flattened so internal details never leave the process.
func ShortMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPreconditionFailed):
		return err.Error()
	case errors.Is(err, ErrBackend):
		return ErrBackend.Error()
	default:
		return "internal error"
	}
}
