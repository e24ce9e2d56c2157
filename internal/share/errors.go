package share

import (
	"errors"
	"fmt"
)

// Caller errors; never worth retrying.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("payload too large")
)

var (
	// ErrNotFound means no share with that token ever existed.
	ErrNotFound = errors.New("share not found")

	// ErrExpired means the share existed but its retention window has
	// passed. Kept distinct from ErrNotFound for user messaging.
	ErrExpired = errors.New("share expired")
)

// StorageError wraps a transient infrastructure failure. Callers may
// retry; the service itself never does.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
