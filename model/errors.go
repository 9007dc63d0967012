package model

import (
	"github.com/pkg/errors"
)

var (
	ValidationError = errors.New("validation failed")
	maskAny         = errors.WithStack
)

// InvalidArgument creates a validation error with given formatted message.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ValidationError, format, args...)
}

// IsValidation returns true if the given error is caused by a ValidationError.
func IsValidation(err error) bool {
	return errors.Cause(err) == ValidationError
}
