package model

import "testing"

func TestAuxPinSelection(t *testing.T) {
	tests := []struct {
		alternate uint8
		expected  PhysicalPin
	}{
		{0, PinAux0},
		{1, PinCS},
		{2, PinAux1},
		{3, PinAux2},
		// Only the two lower bits are significant.
		{4, PinAux0},
		{5, PinCS},
		{0xFF, PinAux2},
	}
	for _, test := range tests {
		cfg := ModeConfiguration{AlternateAux: test.alternate}
		if got := cfg.AuxPin(); got != test.expected {
			t.Errorf("AlternateAux %d: got %s, want %s", test.alternate, got, test.expected)
		}
	}
}

func TestModeConfigurationValidate(t *testing.T) {
	for alternate := uint8(0); alternate < NumPhysicalPins; alternate++ {
		cfg := ModeConfiguration{AlternateAux: alternate}
		if err := cfg.Validate(); err != nil {
			t.Errorf("AlternateAux %d: unexpected error %v", alternate, err)
		}
	}
	cfg := ModeConfiguration{AlternateAux: NumPhysicalPins}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPhysicalPinString(t *testing.T) {
	tests := map[PhysicalPin]string{
		PinAux0:        "aux0",
		PinCS:          "cs",
		PinAux1:        "aux1",
		PinAux2:        "aux2",
		PhysicalPin(9): "unknown",
	}
	for pin, expected := range tests {
		if got := pin.String(); got != expected {
			t.Errorf("pin %d: got %q, want %q", uint8(pin), got, expected)
		}
	}
}
