package model

// PhysicalPin identifies one of the probe pins that can act as the logical
// AUX pin.
type PhysicalPin uint8

const (
	// PinAux0 is the default AUX pin.
	PinAux0 PhysicalPin = iota
	// PinCS is the chip select pin, usable as alternate AUX pin.
	PinCS
	// PinAux1 is the first extra auxiliary pin of the larger hardware variant.
	PinAux1
	// PinAux2 is the second extra auxiliary pin of the larger hardware variant.
	PinAux2
)

// NumPhysicalPins is the number of selectable AUX pin alternates.
const NumPhysicalPins = 4

// String returns a human readable representation of the given pin.
func (p PhysicalPin) String() string {
	switch p {
	case PinAux0:
		return "aux0"
	case PinCS:
		return "cs"
	case PinAux1:
		return "aux1"
	case PinAux2:
		return "aux2"
	default:
		return "unknown"
	}
}

// PinSelector resolves which physical pin currently acts as the logical AUX
// pin. It is implemented by the mode configuration store and is read-only
// to this worker.
type PinSelector interface {
	// AuxPin returns the physical pin currently designated as AUX.
	AuxPin() PhysicalPin
}
