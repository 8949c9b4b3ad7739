package storage

import (
	"errors"
	"fmt"
)

// Error types
type ErrorType string

const (
	TypeNotFound      ErrorType = "not_found"
	TypeAlreadyExists ErrorType = "already_exists"
	TypeInvalidInput  ErrorType = "invalid_input"
	TypeCorrupt       ErrorType = "corrupt"
	TypeUnavailable   ErrorType = "unavailable"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("snapshot not found")
	// ErrAlreadyExists is returned when a record would be overwritten
	ErrAlreadyExists = errors.New("snapshot already exists")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrCorrupt is returned when stored data cannot be decoded
	ErrCorrupt = errors.New("stored snapshot is corrupt")
	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var sentinels = map[ErrorType]error{
	TypeNotFound:      ErrNotFound,
	TypeAlreadyExists: ErrAlreadyExists,
	TypeInvalidInput:  ErrInvalidInput,
	TypeCorrupt:       ErrCorrupt,
	TypeUnavailable:   ErrStorageUnavailable,
}

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's type, so errors.Is(err, ErrNotFound)
// works for every *Error of TypeNotFound.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Type]
	return ok && s == target
}

// TypeOf returns the type of the first *Error in err's chain, or "" when
// there is none.
func TypeOf(err error) ErrorType {
	var se *Error
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}
