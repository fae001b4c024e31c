// Package apperr classifies domain failures into a small set of kinds that
// the transport layer maps to client or server responses.
package apperr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind is the class of a domain failure.
type Kind int

const (
	// Unknown is the kind of any error that carries no classification.
	Unknown Kind = iota
	// NotFound means a referenced entity does not exist.
	NotFound
	// Conflict means the request contradicts current state.
	Conflict
	// Validation means an entity invariant or request shape is violated.
	Validation
	// RetryExhausted means a write kept conflicting until the retry budget ran out.
	RetryExhausted
	// Integrity means a write succeeded but returned an unexpected post-state.
	Integrity
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Validation:
		return "validation"
	case RetryExhausted:
		return "retry_exhausted"
	case Integrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// ClientFacing reports whether errors of this kind are the caller's fault.
func (k Kind) ClientFacing() bool {
	return k == NotFound || k == Conflict || k == Validation
}

// Error is a classified error with a fixed message. Values created with New
// are used as sentinels and compared with errors.Is.
type Error struct {
	kind Kind
	msg  string
}

// New returns a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Errorf returns a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the classification.
func (e *Error) Kind() Kind { return e.kind }

type kinded interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
