package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind string

const (
	// KindTransport: the request never produced an HTTP response.
	KindTransport Kind = "transport"
	// KindStatus: the server answered with a non-2xx status.
	KindStatus Kind = "status"
	// KindDecode: a 2xx body that could not be parsed.
	KindDecode Kind = "decode"
)

type Error struct {
	Kind   Kind
	Op     string
	Status int
	// Detail is the server's `detail` message, if it sent one.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	case KindStatus:
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Detail, e.Status)
		}
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case KindDecode:
		return fmt.Sprintf("%s: invalid response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the message a user should see for err: the server's
// detail when there is one, otherwise the error text.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Kind == KindTransport && apiErr.Err != nil {
			return apiErr.Err.Error()
		}
	}
	return err.Error()
}

// HasDetail reports whether err carries a server-provided detail message.
func HasDetail(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Detail != ""
}

func newTransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func newStatusError(op string, status int, detail string) *Error {
	return &Error{Kind: KindStatus, Op: op, Status: status, Detail: detail}
}

func newDecodeError(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}
