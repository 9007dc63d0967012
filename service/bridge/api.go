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

	"github.com/probeworks/auxpin/model"
)

// InstructionClockHz is the instruction clock feeding the timer units.
const InstructionClockHz = 16000000

// API of the bridge, the fixed set of timer, capture and output-compare
// units shared by the AUX pin functions, plus the physical pins the AUX
// function can be routed to.
type API interface {
	// Pin returns the direction/level registers of the given physical pin.
	Pin(pin model.PhysicalPin) Pin
	// CountTimer returns the timer unit that counts signal edges and clocks
	// the period measurement.
	CountTimer() Timer
	// WindowTimer returns the timer unit that generates the measurement
	// gate window.
	WindowTimer() Timer
	// Capture returns the input capture unit with given index (0, 1).
	// Unit 0 latches the low word of the count timer, unit 1 the high word.
	Capture(index int) CaptureUnit
	// OutputCompare returns the waveform generation unit.
	OutputCompare() OutputCompare
	// Close brings the hardware back to a safe state.
	Close() error
}

// PinDirection of a physical pin.
type PinDirection byte

const (
	PinDirectionInput PinDirection = iota
	PinDirectionOutput
)

// Pin provides access to the direction and level registers of a single
// physical pin.
type Pin interface {
	// SetDirection sets the direction register of the pin.
	SetDirection(direction PinDirection) error
	// Set the output level of the pin.
	Set(value bool) error
	// Get the current level of the pin.
	Get() (bool, error)
	// Settle burns the no-op cycles needed for the input buffer to
	// propagate after a direction change.
	Settle()
}

// Prescale selects the divider applied to a timer's input clock.
type Prescale uint8

const (
	Prescale1 Prescale = iota
	Prescale8
	Prescale64
	Prescale256
)

// Ratio returns the division factor of the prescaler.
func (p Prescale) Ratio() uint32 {
	switch p {
	case Prescale8:
		return 8
	case Prescale64:
		return 64
	case Prescale256:
		return 256
	default:
		return 1
	}
}

// Timer is a single 32-bit timer unit.
type Timer interface {
	// Clear stops the timer and resets its control and period registers.
	Clear() error
	// SetPrescale sets the input clock divider.
	SetPrescale(p Prescale) error
	// SetPeriod sets the period register. The period elapsed flag is raised
	// when the counter reaches this value.
	SetPeriod(period uint32) error
	// ResetCounter clears the counter register.
	ResetCounter() error
	// ReadCounter returns the current counter register value.
	ReadCounter() (uint32, error)
	// UseExternalClock clocks the timer from edges on the given pin.
	UseExternalClock(pin model.PhysicalPin) error
	// UseInternalClock clocks the timer from the instruction clock.
	UseInternalClock() error
	// Start the timer.
	Start() error
	// Stop the timer.
	Stop() error
	// WaitPeriodElapsed blocks until the period interrupt flag is observed
	// set. There is no timeout; a canceled context is the only way out.
	WaitPeriodElapsed(ctx context.Context) error
}

// CaptureUnit is a single input capture unit.
type CaptureUnit interface {
	// Arm configures the unit to latch its word of the count timer on every
	// rising edge of the given pin.
	Arm(pin model.PhysicalPin) error
	// Disarm turns the capture unit off.
	Disarm() error
	// HasData returns true when a latched capture is buffered.
	HasData() (bool, error)
	// Read pops the oldest buffered capture.
	Read() (uint16, error)
	// WaitData blocks until a capture is buffered. There is no timeout; a
	// canceled context is the only way out.
	WaitData(ctx context.Context) error
}

// OutputCompare is the waveform generation unit.
type OutputCompare interface {
	// Clear stops the unit and resets its control register.
	Clear() error
	// Route attaches the unit's output to the given physical pin.
	Route(pin model.PhysicalPin) error
	// Detach removes the unit's output from whatever pin it drives.
	Detach() error
	// SetCompare programs the primary and secondary compare registers.
	SetCompare(onTime uint32) error
	// EnablePWM puts the unit in PWM mode.
	EnablePWM() error
}
