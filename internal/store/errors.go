package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrParentNotFound  = errors.New("parent row missing or deleted")
	ErrMissingField    = errors.New("required field missing")
)

// StorageError is returned by the entity operations. It wraps one of the
// sentinel errors above (or a driver error) so callers can use errors.Is.
type StorageError struct {
	Op    string
	Table string
	ID    int64
	Err   error
}

func (e *StorageError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %s %d: %v", e.Op, e.Table, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConfigError marks an unrecoverable installation problem: the database file
// cannot be created or opened, or the schema cannot be migrated.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsFatal reports whether err (or anything it wraps) is a ConfigError.
func IsFatal(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
