package bridge

import "github.com/pkg/errors"

var (
	// NotSupportedError is returned by backends that lack one of the
	// hardware units.
	NotSupportedError = errors.New("not supported")
	IsNotSupported    = isErrorFunc(NotSupportedError)
	// NotReadyError is returned when reading a capture unit with an empty
	// buffer.
	NotReadyError = errors.New("no capture buffered")
	IsNotReady    = isErrorFunc(NotReadyError)

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}
