package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sitegrid/sitegrid/internal/models"
)

// Kind classifies gateway failures. Callers decide what to show from the kind
// and Message, never from raw transport errors.
type Kind int

const (
	KindTransportFailure Kind = iota
	KindNotFound
	KindExpired
	KindAlreadyProcessed
	KindInvalidRequest
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindTransportFailure:
		return "transport-failure"
	case KindNotFound:
		return "not-found"
	case KindExpired:
		return "expired"
	case KindAlreadyProcessed:
		return "already-processed"
	case KindInvalidRequest:
		return "invalid-request"
	case KindUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DefaultMessage is shown when the server did not supply a message of its own.
func (k Kind) DefaultMessage() string {
	switch k {
	case KindNotFound:
		return "Invitation not found."
	case KindExpired:
		return "This invitation has expired."
	case KindAlreadyProcessed:
		return "This invitation has already been processed."
	case KindInvalidRequest:
		return "The request was invalid."
	case KindUnauthenticated:
		return "Your session has expired. Please sign in again."
	}
	return "Could not reach the server. Please try again."
}

// Error is returned by every Client operation.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrExpired          = &Error{Kind: KindExpired}
	ErrAlreadyProcessed = &Error{Kind: KindAlreadyProcessed}
	ErrInvalidRequest   = &Error{Kind: KindInvalidRequest}
	ErrTransport        = &Error{Kind: KindTransportFailure}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
)

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.DefaultMessage()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindForStatus maps an HTTP status code of a failed call to an error kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusGone:
		return KindExpired
	case http.StatusForbidden, http.StatusConflict:
		return KindAlreadyProcessed
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case http.StatusUnauthorized:
		return KindUnauthenticated
	}
	return KindTransportFailure
}

func newStatusError(status int, body models.BaseError) *Error {
	kind := KindForStatus(status)
	message := body.Text()
	if message == "" || kind == KindTransportFailure {
		// 5xx bodies are not meant for end users.
		message = kind.DefaultMessage()
	}
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: message,
		Err:     fmt.Errorf("http status %d", status),
	}
}

func newTransportError(err error) *Error {
	return &Error{
		Kind:    KindTransportFailure,
		Message: KindTransportFailure.DefaultMessage(),
		Err:     err,
	}
}

// asError converts anything that escaped the request path into an *Error.
func asError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newTransportError(err)
}

// KindOf returns the kind of err. Errors that did not come from the gateway
// count as transport failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransportFailure
}

// Message returns the human readable message for err, or "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return KindTransportFailure.DefaultMessage()
}

func isTransportFailure(err error) bool {
	return KindOf(err) == KindTransportFailure
}
