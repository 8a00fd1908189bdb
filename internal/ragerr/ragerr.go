package ragerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure so callers can decide between
// retrying retrieval only, retrying the whole query, or aborting.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindModelLoad
	KindRetrieval
	KindGeneration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindModelLoad:
		return "model load"
	case KindRetrieval:
		return "retrieval"
	case KindGeneration:
		return "generation"
	}
	return "unknown"
}

// Error carries the failure kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func Validationf(op, format string, args ...any) error {
	return New(KindValidation, op, format, args...)
}

func NotFoundf(op, format string, args ...any) error {
	return New(KindNotFound, op, format, args...)
}
