package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrKind is the structured classification of storage failures. Callers
// branch on the kind instead of matching error text.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	// KindContention covers transient write contention (lock waits,
	// serialization failures, deadlocks). Safe to retry.
	KindContention
	// KindConstraint covers unique/foreign key violations.
	KindConstraint
	KindNotFound
)

type StorageError struct {
	Kind ErrKind
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (kind=%d): %v", e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// classify wraps a pgx error with its ErrKind. nil stays nil.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &StorageError{Kind: KindNotFound, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			// serialization_failure, deadlock_detected, lock_not_available
			return &StorageError{Kind: KindContention, Err: err}
		case "23505", "23503":
			return &StorageError{Kind: KindConstraint, Err: err}
		}
	}
	return &StorageError{Kind: KindUnknown, Err: err}
}

// Kind extracts the ErrKind from an error chain.
func Kind(err error) ErrKind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsContention reports whether err is transient write contention.
func IsContention(err error) bool {
	return Kind(err) == KindContention
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return Kind(err) == KindNotFound
}
