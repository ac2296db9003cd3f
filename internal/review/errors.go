package review

import (
	"errors"
	"fmt"
	"strings"
)

// UnparsableResponseError means the model returned text but no JSON value
// could be extracted from it.
type UnparsableResponseError struct {
	Raw    string
	Reason string
}

func (e *UnparsableResponseError) Error() string {
	return fmt.Sprintf("unparsable model response: %s", e.Reason)
}

// MissingFieldError lists every required field absent from the model output
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// FieldTypeError means a field was present with the wrong shape
type FieldTypeError struct {
	Field  string
	Detail string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Detail)
}

// AnalysisError is returned by the orchestrator once it gives up. It keeps
// the raw text of the last attempt for operator diagnosis.
type AnalysisError struct {
	Attempts int
	Raw      string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// IsUnparsable reports whether err is or wraps an UnparsableResponseError
func IsUnparsable(err error) bool {
	var target *UnparsableResponseError
	return errors.As(err, &target)
}

// IsMissingField reports whether err is or wraps a MissingFieldError
func IsMissingField(err error) bool {
	var target *MissingFieldError
	return errors.As(err, &target)
}

// IsInvalidField reports whether err is or wraps a FieldTypeError
func IsInvalidField(err error) bool {
	var target *FieldTypeError
	return errors.As(err, &target)
}

// RawResponse returns the raw model text carried by err, if any
func RawResponse(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) && ae.Raw != "" {
		return ae.Raw
	}
	var ue *UnparsableResponseError
	if errors.As(err, &ue) {
		return ue.Raw
	}
	return ""
}

// recoverable reports whether a fresh prompt might fix the failure
func recoverable(err error) bool {
	return IsUnparsable(err) || IsMissingField(err) || IsInvalidField(err)
}
