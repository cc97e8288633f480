package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindFetchFailure       Kind = "fetch_failure"
	KindParseFailure       Kind = "parse_failure"
	KindNotFound           Kind = "not_found"
	KindPersistenceFailure Kind = "persistence_failure"
	KindScanFailure        Kind = "scan_failure"
	KindInvalidInput       Kind = "invalid_input"
	KindInternal           Kind = "internal"
)

// Error is the service-wide error type. Op names the failing operation
// (e.g. "idp.FetchAllUsers") and Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error around err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WrapMessage is Wrap with a fixed client-facing message. The cause stays
// available to logs through Error and Unwrap.
func WrapMessage(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Shorthands for the kinds that wrap a cause.
func FetchFailure(op string, err error) error       { return Wrap(KindFetchFailure, op, err) }
func ParseFailure(op string, err error) error       { return Wrap(KindParseFailure, op, err) }
func PersistenceFailure(op string, err error) error { return Wrap(KindPersistenceFailure, op, err) }
func ScanFailure(op string, err error) error        { return Wrap(KindScanFailure, op, err) }

// Shorthands for the kinds that carry only a message.
func NotFound(op, message string) error     { return New(KindNotFound, op, message) }
func InvalidInput(op, message string) error { return New(KindInvalidInput, op, message) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing text of err: the Message of its
// *Error when set, otherwise the cause's text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto the status code the API returns for it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindFetchFailure:
		return http.StatusBadGateway
	case KindParseFailure:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
