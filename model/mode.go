package model

// AuxMode identifies which hardware function currently owns the AUX pin's
// shared timer, capture and output-compare units.
type AuxMode uint8

const (
	// AuxModeIO - the AUX pin is a plain digital input/output.
	AuxModeIO AuxMode = iota
	// AuxModeFrequency - the AUX pin feeds the frequency counting timers.
	AuxModeFrequency
	// AuxModePWM - the AUX pin is driven by the output-compare unit.
	AuxModePWM
)

// String returns a human readable representation of the given mode.
func (m AuxMode) String() string {
	switch m {
	case AuxModeIO:
		return "io"
	case AuxModeFrequency:
		return "frequency"
	case AuxModePWM:
		return "pwm"
	default:
		return "unknown"
	}
}
