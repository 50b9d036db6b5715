package storage

import (
	"errors"
	"fmt"
)

// Kind classifies why a guarded storage operation produced no value.
type Kind int

const (
	KindNone Kind = iota
	KindConnection
	KindStorage
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConnection:
		return "connection"
	case KindStorage:
		return "storage"
	case KindInvalid:
		return "invalid"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrInvalid marks an error returned from a guarded function as a rejected
// input rather than a storage failure. Wrap it with fmt.Errorf("...: %w").
var ErrInvalid = errors.New("invalid input")

// Error is the typed failure carried by a non-ok Outcome.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Outcome is the result of a guarded storage operation. On failure Value is
// the zero value of T, so lookups read as empty, mutations as false, lists
// as empty and counts as zero.
type Outcome[T any] struct {
	Value T
	Kind  Kind
	err   *Error
}

func ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

func failed[T any](op string, kind Kind, err error) Outcome[T] {
	var zero T
	return Outcome[T]{Value: zero, Kind: kind, err: &Error{Op: op, Kind: kind, Err: err}}
}

func (o Outcome[T]) OK() bool { return o.Kind == KindNone }

// Err returns nil for a successful outcome and an *Error otherwise.
func (o Outcome[T]) Err() error {
	if o.err == nil {
		return nil
	}
	return o.err
}

// Result unpacks the outcome into the usual value/error pair.
func (o Outcome[T]) Result() (T, error) {
	return o.Value, o.Err()
}

// Succeeded wraps an already computed value, mostly for fakes in tests.
func Succeeded[T any](v T) Outcome[T] { return ok(v) }

// Failed builds a failed outcome, mostly for fakes in tests.
func Failed[T any](op string, kind Kind, err error) Outcome[T] { return failed[T](op, kind, err) }
