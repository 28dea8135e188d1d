package repositories

import "fmt"

// ErrorCode enumerates repository error causes shared across stores.
type ErrorCode string

const (
	// ErrorUnknown represents an unspecified failure.
	ErrorUnknown ErrorCode = "store_unknown"
	// ErrorNotFound indicates the addressed row does not exist.
	ErrorNotFound ErrorCode = "store_not_found"
	// ErrorConflict indicates a guarded update could not be applied, such as a
	// stock decrement that would drive the stored value negative.
	ErrorConflict ErrorCode = "store_conflict"
	// ErrorUnavailable indicates the backing store could not be reached.
	ErrorUnavailable ErrorCode = "store_unavailable"
)

// StoreError wraps persistence failures with machine readable codes.
type StoreError struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the error categorises as a missing row.
func (e *StoreError) IsNotFound() bool { return e != nil && e.Code == ErrorNotFound }

// IsConflict reports whether the error categorises as a guarded-update conflict.
func (e *StoreError) IsConflict() bool { return e != nil && e.Code == ErrorConflict }

// IsUnavailable reports whether the error categorises as a transport failure.
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Code == ErrorUnavailable }

// NewStoreError constructs a typed store error.
func NewStoreError(code ErrorCode, op string, message string, err error) *StoreError {
	if message == "" {
		message = string(code)
	}
	return &StoreError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var _ RepositoryError = (*StoreError)(nil)
