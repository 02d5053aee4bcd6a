package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a storage failure for services.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// StoreError is the RepositoryError produced by every backend. Op names the repository
// operation, e.g. "firestore.orders.update".
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

var _ RepositoryError = (*StoreError)(nil)

func (e *StoreError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Kind == KindNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Kind == KindConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == KindUnavailable }

// NewStoreError wraps a driver error under op with the given classification.
func NewStoreError(op string, kind ErrorKind, err error) *StoreError {
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// NotFound reports a missing record detected by repository logic.
func NotFound(op, format string, args ...any) error {
	return NewStoreError(op, KindNotFound, fmt.Errorf(format, args...))
}

// Conflict reports a version mismatch or a taken unique value.
func Conflict(op, format string, args ...any) error {
	return NewStoreError(op, KindConflict, fmt.Errorf(format, args...))
}

// Classified reports whether err already carries a repository classification, so
// backends can pass it through instead of wrapping it again.
func Classified(err error) bool {
	var classified RepositoryError
	return errors.As(err, &classified)
}
