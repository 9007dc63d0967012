//    Copyright 2024 Probeworks
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package bridge

import (
	"context"
	"testing"

	"github.com/probeworks/auxpin/model"
)

func TestRaspberryPiBridgePinResolution(t *testing.T) {
	br, err := NewRaspberryPiBridge()
	if err != nil {
		t.Fatalf("NewRaspberryPiBridge failed: %v", err)
	}
	seen := map[Pin]bool{}
	for pin := model.PhysicalPin(0); pin < model.NumPhysicalPins; pin++ {
		p := br.Pin(pin)
		if p == nil {
			t.Fatalf("no backing pin for %s", pin)
		}
		if seen[p] {
			t.Errorf("pin %s shares a GPIO line with another pin", pin)
		}
		seen[p] = true
	}
}

func TestRaspberryPiBridgeTimersUnsupported(t *testing.T) {
	br, err := NewRaspberryPiBridge()
	if err != nil {
		t.Fatalf("NewRaspberryPiBridge failed: %v", err)
	}
	if err := br.CountTimer().Clear(); !IsNotSupported(err) {
		t.Errorf("expected not supported from count timer, got %v", err)
	}
	if err := br.WindowTimer().Start(); !IsNotSupported(err) {
		t.Errorf("expected not supported from window timer, got %v", err)
	}
	if err := br.Capture(0).Arm(model.PinAux0); !IsNotSupported(err) {
		t.Errorf("expected not supported from capture unit, got %v", err)
	}
	if err := br.Capture(1).WaitData(context.Background()); !IsNotSupported(err) {
		t.Errorf("expected not supported from capture unit, got %v", err)
	}
	if err := br.OutputCompare().Route(model.PinAux0); !IsNotSupported(err) {
		t.Errorf("expected not supported from output compare, got %v", err)
	}
}

func TestRaspberryPiPinSetBeforeDirection(t *testing.T) {
	br, err := NewRaspberryPiBridge()
	if err != nil {
		t.Fatalf("NewRaspberryPiBridge failed: %v", err)
	}
	// Without an exported GPIO line the level is latched in memory and
	// applied once the pin becomes an output.
	pin := br.Pin(model.PinAux0)
	if err := pin.Set(true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := pin.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !value {
		t.Error("expected latched level to read back high")
	}
}
