package cfgpush

import (
	"errors"
	"fmt"
)

// Sentinel errors that can be used with errors.Is() for error type checking.
var (
	// ErrMalformedName indicates the arrival's filename does not contain a
	// device token at the configured path segment.
	ErrMalformedName = errors.New("malformed arrival name")

	// ErrNotArchive indicates the path does not carry the recognized archive suffix.
	ErrNotArchive = errors.New("not a recognized archive")
)

// RequestError represents a transport-level failure of a commit API call.
// A non-2xx HTTP response is not a RequestError; see StatusError.
type RequestError struct {
	Op  string // "create" or "update"
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusError is raised by the pipeline, not the transport, when the final
// commit response is not a 2xx.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Op, e.StatusCode)
}
