package model

// ModeConfiguration mirrors the part of the probe's mode configuration store
// that is relevant to the AUX worker: which of the alternate pins currently
// acts as the logical AUX pin.
type ModeConfiguration struct {
	// Index of the alternate AUX pin selection (0...3).
	AlternateAux uint8 `json:"alternate-aux"`
}

// AuxPin resolves the alternate pin selection to a physical pin.
// Only the two lower bits of the selection are significant.
func (c ModeConfiguration) AuxPin() PhysicalPin {
	switch c.AlternateAux & 0b00000011 {
	case 1:
		return PinCS
	case 2:
		return PinAux1
	case 3:
		return PinAux2
	default:
		return PinAux0
	}
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c ModeConfiguration) Validate() error {
	if c.AlternateAux >= NumPhysicalPins {
		return InvalidArgument("AlternateAux must be in 0..%d range, got %d", NumPhysicalPins-1, c.AlternateAux)
	}
	return nil
}
