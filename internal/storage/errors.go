package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when attempting to create an object at a
	// key that already exists and overwrite is disabled.
	ErrKeyExists = errors.New("object already exists at this key")

	// ErrInvalidKey is returned for empty keys or path traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrAccessDenied is returned when the storage provider denies access.
	ErrAccessDenied = errors.New("access denied")
)

// StorageError wraps storage operation errors with the operation and key.
// Supports errors.Is for the sentinel errors above.
type StorageError struct {
	Op  string // Operation that failed (e.g., "Put")
	Key string // Storage key involved
	Err error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
