package metabase

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a gateway failure.
type ErrorKind int

const (
	// ErrKindConnectTimeout means the connection could not be established
	// within the connect-timeout budget.
	ErrKindConnectTimeout ErrorKind = iota
	// ErrKindReadTimeout means the connection was established but the
	// response did not arrive within the read-timeout budget.
	ErrKindReadTimeout
	// ErrKindConnectError is a transport-level failure (DNS, refused, TLS).
	ErrKindConnectError
	// ErrKindAPIError is a received HTTP response with a non-2xx status.
	ErrKindAPIError
	// ErrKindMalformedShape means an endpoint expected to return a JSON
	// array returned some other shape.
	ErrKindMalformedShape
	// ErrKindAuth is a session login failure or incomplete credentials.
	ErrKindAuth
)

// String returns a human-readable kind name
func (k ErrorKind) String() string {
	switch k {
	case ErrKindConnectTimeout:
		return "connect_timeout"
	case ErrKindReadTimeout:
		return "read_timeout"
	case ErrKindConnectError:
		return "connect_error"
	case ErrKindAPIError:
		return "api_error"
	case ErrKindMalformedShape:
		return "malformed_shape"
	case ErrKindAuth:
		return "auth_error"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure. Transport failures carry the
// original error in Err; API failures carry the upstream status and body.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}

// dialError tags failures raised while establishing the connection, so
// classification can separate connect failures from read failures without
// string matching.
type dialError struct {
	err error
}

func (e *dialError) Error() string {
	return e.err.Error()
}

func (e *dialError) Unwrap() error {
	return e.err
}

// classifyTransportError maps an http.Client error onto the failure
// taxonomy. Errors tagged by the dialer are connect failures; any other
// timeout happened while waiting for or reading the response.
func (c *Client) classifyTransportError(err error, fullURL string) *Error {
	var dErr *dialError
	if errors.As(err, &dErr) {
		if isTimeout(dErr.err) {
			return &Error{
				Kind:    ErrKindConnectTimeout,
				Message: fmt.Sprintf("connection timeout (%gs) when connecting to %s: %v", c.connectTimeout.Seconds(), fullURL, dErr.err),
				Err:     err,
			}
		}
		return &Error{
			Kind:    ErrKindConnectError,
			Message: fmt.Sprintf("connection error when connecting to %s: %v", fullURL, dErr.err),
			Err:     err,
		}
	}

	if isTimeout(err) {
		return &Error{
			Kind:    ErrKindReadTimeout,
			Message: fmt.Sprintf("read timeout (%gs) when reading response from %s: %v", c.readTimeout.Seconds(), fullURL, err),
			Err:     err,
		}
	}

	return &Error{
		Kind:    ErrKindConnectError,
		Message: fmt.Sprintf("connection error when connecting to %s: %v", fullURL, err),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newAPIError(statusCode int, body []byte) *Error {
	return &Error{
		Kind:       ErrKindAPIError,
		Message:    fmt.Sprintf("API request failed with status %d: %s", statusCode, string(body)),
		StatusCode: statusCode,
		Body:       string(body),
	}
}

func newMalformedShapeError(path string) *Error {
	return &Error{
		Kind:    ErrKindMalformedShape,
		Message: fmt.Sprintf("expected a JSON array from %s", path),
	}
}
