package engine

import "errors"

// ErrServerClosed is returned by Dispatch after Shutdown.
var ErrServerClosed = errors.New("mirage server closed")

// ErrSchemaRequired is returned by New without a schema.
var ErrSchemaRequired = errors.New("server requires a schema")

// ErrNoUpstream is reported for a pass-through call without a host when no
// upstream is configured.
var ErrNoUpstream = errors.New("no upstream configured for requests without a host")

// ErrPassthroughLoop is reported when a pass-through call comes back to the
// server that forwarded it.
var ErrPassthroughLoop = errors.New("pass-through loop detected")

// StatusCodeError is an error that maps to an HTTP status code.
type StatusCodeError interface {
	error
	StatusCode() int
}

// HintError is an error that carries a suggestion for fixing it.
type HintError interface {
	error
	Hint() string
}
