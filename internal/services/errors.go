package services

import (
	"errors"
	"fmt"

	"github.com/mlearn/apiserver/internal/storage"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoleMismatch       = errors.New("account exists with a different role")
	ErrInvalidCourse      = errors.New("course does not exist")
	ErrAlreadySubscribed  = errors.New("already subscribed to this course")
	ErrMissingEmail       = errors.New("email is required")
	ErrForbidden          = errors.New("forbidden")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError wraps a failure of the database or object store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// uploadError reports rejected file content as a ValidationError on field.
func uploadError(field, op string, err error) error {
	if errors.Is(err, storage.ErrUnsupportedType) {
		return &ValidationError{Field: field, Message: storage.ErrUnsupportedType.Error()}
	}
	return storageError(op, err)
}
