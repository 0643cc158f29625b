package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("card not found")
	ErrDuplicate  = errors.New("card already registered")
	ErrValidation = errors.New("invalid request")
	// ErrPersist marks a durable store failure after the in-memory change was applied.
	ErrPersist = errors.New("persisting cards")
)

// PersistError is returned together with a successful result when the store
// could not be written. The in-memory ledger keeps the change.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrPersist, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}

// IsWarning reports whether err only signals a persistence failure.
func IsWarning(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
