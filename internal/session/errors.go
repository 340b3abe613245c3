package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every error the transport surfaces.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindSessionExpired
	KindValidation
	KindNetwork
	KindNotFound
	KindConflict
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindSessionExpired:
		return "session_expired"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by Execute.
// Message is the server-provided message when there was one.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller may reasonably try the same operation again.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrSessionExpired  = &Error{Kind: KindSessionExpired}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrServer          = &Error{Kind: KindServer}
)

// ErrNoSession is returned by Await when there are no credentials to repair.
var ErrNoSession = errors.New("session: not signed in")

// KindOf extracts the Kind of err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusKind(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

func networkError(err error) *Error {
	msg := "network error, please retry"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out, please retry"
	}
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}

func sessionExpired(message string, cause error) *Error {
	if message == "" {
		message = "Session expired. Please log in again."
	}
	return &Error{Kind: KindSessionExpired, Status: http.StatusUnauthorized, Message: message, Err: cause}
}
