// Copyright 2024 Probeworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/probeworks/auxpin/model"
)

func newTestBridge(signalHz float64) *SimBridge {
	return NewSimBridge(SimConfig{SignalHz: signalHz}, zerolog.Nop())
}

func TestSimPinLevels(t *testing.T) {
	sim := newTestBridge(0)
	pin := sim.Pin(model.PinAux0)
	if err := pin.SetDirection(PinDirectionOutput); err != nil {
		t.Fatalf("SetDirection failed: %v", err)
	}
	if err := pin.Set(true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := pin.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !value {
		t.Error("expected driven level to read back high")
	}
	// As input the externally driven level wins over the output latch.
	if err := pin.SetDirection(PinDirectionInput); err != nil {
		t.Fatalf("SetDirection failed: %v", err)
	}
	sim.DrivePin(model.PinAux0, false)
	value, err = pin.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value {
		t.Error("expected external level to read back low")
	}
}

func TestSimGateWindowCountsEdges(t *testing.T) {
	sim := newTestBridge(250000)
	count := sim.CountTimer()
	window := sim.WindowTimer()
	if err := count.UseExternalClock(model.PinAux0); err != nil {
		t.Fatalf("UseExternalClock failed: %v", err)
	}
	if err := count.SetPrescale(Prescale256); err != nil {
		t.Fatalf("SetPrescale failed: %v", err)
	}
	if err := window.SetPeriod(InstructionClockHz); err != nil {
		t.Fatalf("SetPeriod failed: %v", err)
	}
	if err := window.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := count.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := window.WaitPeriodElapsed(context.Background()); err != nil {
		t.Fatalf("WaitPeriodElapsed failed: %v", err)
	}
	value, err := count.ReadCounter()
	if err != nil {
		t.Fatalf("ReadCounter failed: %v", err)
	}
	// 250 kHz gated for one second through the 1:256 prescaler.
	if value != 976 {
		t.Errorf("expected 976 edges, got %d", value)
	}
}

func TestSimCaptureTimestamps(t *testing.T) {
	sim := newTestBridge(1000)
	low := sim.Capture(0)
	high := sim.Capture(1)
	if err := low.Arm(model.PinAux0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if err := high.Arm(model.PinAux0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	// Arming buffers one stale capture per unit.
	for _, unit := range []CaptureUnit{low, high} {
		buffered, err := unit.HasData()
		if err != nil {
			t.Fatalf("HasData failed: %v", err)
		}
		if !buffered {
			t.Fatal("expected a stale capture after arming")
		}
		if _, err := unit.Read(); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
	if err := low.WaitData(context.Background()); err != nil {
		t.Fatalf("WaitData failed: %v", err)
	}
	lowWord, err := low.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	highWord, err := high.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	// 1 kHz means 16000 ticks between edges.
	if ticks := uint32(highWord)<<16 | uint32(lowWord); ticks != 16000 {
		t.Errorf("expected timestamp 16000, got %d", ticks)
	}
}

func TestSimCaptureReadWithoutData(t *testing.T) {
	sim := newTestBridge(0)
	unit := sim.Capture(0)
	if err := unit.Arm(model.PinAux0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if _, err := unit.Read(); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	_, err := unit.Read()
	if !IsNotReady(err) {
		t.Fatalf("expected not ready error, got %v", err)
	}
}

func TestSimCaptureSilentSignalBlocks(t *testing.T) {
	sim := newTestBridge(0)
	unit := sim.Capture(0)
	if err := unit.Arm(model.PinAux0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if err := unit.Disarm(); err != nil {
		t.Fatalf("Disarm failed: %v", err)
	}
	if err := unit.Arm(model.PinAux0); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if _, err := unit.Read(); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := unit.WaitData(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSimOutputCompareClearKeepsRouting(t *testing.T) {
	sim := newTestBridge(0)
	oc := sim.OutputCompare()
	if err := oc.Route(model.PinAux0); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := oc.SetCompare(42); err != nil {
		t.Fatalf("SetCompare failed: %v", err)
	}
	if err := oc.EnablePWM(); err != nil {
		t.Fatalf("EnablePWM failed: %v", err)
	}
	if err := oc.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	state := sim.OutputCompareState()
	if !state.Routed {
		t.Error("clearing the control register must not detach the pin")
	}
	if state.PWMEnabled || state.Compare != 0 {
		t.Errorf("unexpected state after clear %+v", state)
	}
}
