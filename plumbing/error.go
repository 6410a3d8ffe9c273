package plumbing

import (
	"errors"
	"fmt"
)

// PermanentError marks a failure that retrying cannot fix, such as hashing
// an unsupported value or reading a corrupt tree.
type PermanentError struct {
	Err error
}

// NewPermanentError wraps err, nil stays nil.
func NewPermanentError(err error) *PermanentError {
	if err == nil {
		return nil
	}

	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %s", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err or any error it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// UnexpectedError marks a failure outside of the error contract of an
// operation, like a panic recovered in a background walk.
type UnexpectedError struct {
	Err error
}

// NewUnexpectedError wraps err, nil stays nil.
func NewUnexpectedError(err error) *UnexpectedError {
	if err == nil {
		return nil
	}

	return &UnexpectedError{Err: err}
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %s", e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}
