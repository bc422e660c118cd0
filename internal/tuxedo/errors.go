package tuxedo

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCiphertext marks any failure while decoding a response:
	// bad base64, ciphertext not block-aligned, inconsistent padding, or a
	// payload that does not parse as JSON. It usually means a wrong key/IV.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrUnreachable marks a network-level failure. The outcome of the
	// request is unknown, not assumed failed.
	ErrUnreachable = errors.New("panel unreachable")

	// ErrEmptyResult marks an HTTP 200 whose envelope carried no Result
	// payload. The panel does this instead of an error status when it
	// rejects a command.
	ErrEmptyResult = errors.New("empty result from panel")

	// ErrMissingCode is returned when neither a per-call code nor a default
	// code is available. No network call is made.
	ErrMissingCode = errors.New("entry code is missing")
)

// HTTPError is a non-200 response from the panel.
type HTTPError struct {
	Endpoint   string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("endpoint %s returned HTTP %d", e.Endpoint, e.StatusCode)
}
