package auxpin

import "github.com/pkg/errors"

var (
	// ErrPWMActive is returned when frequency counting is requested while
	// the PWM generator owns the shared timer hardware.
	ErrPWMActive = errors.New("frequency counting unavailable while PWM is active")
	IsPWMActive  = isErrorFunc(ErrPWMActive)

	maskAny = errors.WithStack
)

func isErrorFunc(typeOfError error) func(err error) bool {
	return func(err error) bool {
		return err == typeOfError || errors.Cause(err) == typeOfError
	}
}
