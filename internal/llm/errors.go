package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is the sentinel behind every EmptyResponseError
var ErrEmptyResponse = errors.New("model returned no text")

// TransportError means the model call could not complete: network failure,
// auth, quota, a non-2xx status or cancellation.
type TransportError struct {
	Provider string
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// EmptyResponseError means the call succeeded but produced no usable text
type EmptyResponseError struct {
	Provider   string
	StopReason string
}

func (e *EmptyResponseError) Error() string {
	if e.StopReason != "" {
		return fmt.Sprintf("%s: %v (stop reason: %s)", e.Provider, ErrEmptyResponse, e.StopReason)
	}
	return fmt.Sprintf("%s: %v", e.Provider, ErrEmptyResponse)
}

func (e *EmptyResponseError) Is(target error) bool {
	return target == ErrEmptyResponse
}

// IsTransport reports whether err is or wraps a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsEmptyResponse reports whether err is or wraps an EmptyResponseError
func IsEmptyResponse(err error) bool {
	return errors.Is(err, ErrEmptyResponse)
}

func transportErr(provider string, cause error) error {
	return &TransportError{Provider: provider, Cause: cause}
}
