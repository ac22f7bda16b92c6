package ir

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline errors.
type Kind string

const (
	// KindConnectivity is an I/O failure reaching a remote source or sink.
	KindConnectivity Kind = "CONNECTIVITY"

	// KindResponse is a non-success status from a remote source or sink.
	KindResponse Kind = "RESPONSE"

	// KindInternal is an invariant violation. Always fatal for the unit of
	// work that raised it.
	KindInternal Kind = "INTERNAL"

	// KindInput is malformed externally supplied data. Reported, not fatal.
	KindInput Kind = "INPUT"

	// KindFileIO is a sensor or annotation file read failure. Fatal for the
	// ingestion run.
	KindFileIO Kind = "FILE_IO"

	// KindConfiguration is a malformed or ineffective schema, rule or
	// pipeline declaration.
	KindConfiguration Kind = "CONFIGURATION"

	// KindQuery is a rule or query that failed to parse or execute.
	KindQuery Kind = "QUERY"
)

// Kinds lists every error kind, for metrics label pre-registration.
var Kinds = []Kind{
	KindConnectivity, KindResponse, KindInternal, KindInput,
	KindFileIO, KindConfiguration, KindQuery,
}

// Error is a categorized pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err, or anything it wraps, is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// ConnectivityError reports a failure to reach a remote endpoint.
func ConnectivityError(msg string, err error) *Error {
	return newError(KindConnectivity, msg, err)
}

// ResponseError reports a non-success status from a remote endpoint.
func ResponseError(status int, msg string) *Error {
	return newError(KindResponse, fmt.Sprintf("%s (status %d)", msg, status), nil)
}

// InternalError reports an invariant violation.
func InternalError(msg string, err error) *Error {
	return newError(KindInternal, msg, err)
}

// InputError reports malformed external data.
func InputError(msg string, err error) *Error {
	return newError(KindInput, msg, err)
}

// FileIOError reports a sensor file read failure.
func FileIOError(msg string, err error) *Error {
	return newError(KindFileIO, msg, err)
}

// ConfigurationError reports unusable configuration.
func ConfigurationError(msg string, err error) *Error {
	return newError(KindConfiguration, msg, err)
}

// QueryError reports a rule or query that failed to parse or execute.
func QueryError(msg string, err error) *Error {
	return newError(KindQuery, msg, err)
}
