// Package apperr carries the error taxonomy shared by the board core and the
// HTTP layer. Every mutation entry point reports one of these kinds so the
// transport can map failures without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation: field constraints violated before any store write.
	// Callers must not retry without correcting input.
	KindValidation Kind = iota + 1
	// KindInvalidIndex: reorder given out-of-range indices.
	KindInvalidIndex
	// KindInvalidTransition: status move with a malformed status, or a
	// taskId/status argument swap.
	KindInvalidTransition
	// KindNotFound: referenced entity missing at operation time. Legitimate
	// under concurrent deletion by another client.
	KindNotFound
	// KindStore: the document store or blob store rejected an operation.
	// Not retried automatically.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidIndex:
		return "invalid_index"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func InvalidIndex(format string, args ...any) error {
	return &Error{Kind: KindInvalidIndex, Msg: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Store(err error, msg string) error {
	return &Error{Kind: KindStore, Msg: msg, Err: err}
}

// KindOf reports the kind of err, or 0 if err is not an apperr.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }
