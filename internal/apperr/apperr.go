// Package apperr defines the error kinds shared by the ingestion pipeline.
//
// Every failure that crosses a component boundary is an *Error tagged with a
// Kind. Callers branch on the kind with errors.Is against the exported
// sentinels (ErrParse, ErrTransport, ...) or with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	Other Kind = iota
	InputFormat
	Transport
	Parse
	Storage
)

func (k Kind) String() string {
	switch k {
	case InputFormat:
		return "input format"
	case Transport:
		return "transport"
	case Parse:
		return "parse"
	case Storage:
		return "storage"
	default:
		return "other"
	}
}

// Error is a classified failure raised by operation Op.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is. They carry only a kind.
var (
	ErrInputFormat = &Error{Kind: InputFormat}
	ErrTransport   = &Error{Kind: Transport}
	ErrParse       = &Error{Kind: Parse}
	ErrStorage     = &Error{Kind: Storage}
)

// E wraps err as a failure of the given kind.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a failure of the given kind from a format string. A %w verb
// in format keeps the wrapped error reachable.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
