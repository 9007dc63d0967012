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
	"sync"
	"time"

	"github.com/ecc1/gpio"

	"github.com/probeworks/auxpin/model"
)

// GPIO numbers of the header pins used as AUX alternates.
var piPinNumbers = map[model.PhysicalPin]int{
	model.PinAux0: 17,
	model.PinCS:   27,
	model.PinAux1: 22,
	model.PinAux2: 23,
}

type piBridge struct {
	pins map[model.PhysicalPin]*piPin
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's.
// Only the digital I/O part of the AUX subsystem is available; there are no
// timer/capture units behind the header, so waveform generation and
// frequency counting report NotSupportedError.
func NewRaspberryPiBridge() (API, error) {
	pins := make(map[model.PhysicalPin]*piPin)
	for logical, number := range piPinNumbers {
		pins[logical] = &piPin{number: number}
	}
	return &piBridge{
		pins: pins,
	}, nil
}

// Pin returns the direction/level registers of the given physical pin.
func (p *piBridge) Pin(pin model.PhysicalPin) Pin {
	return p.pins[pin]
}

// CountTimer is not available on this bridge.
func (p *piBridge) CountTimer() Timer { return unsupportedTimer{} }

// WindowTimer is not available on this bridge.
func (p *piBridge) WindowTimer() Timer { return unsupportedTimer{} }

// Capture is not available on this bridge.
func (p *piBridge) Capture(index int) CaptureUnit { return unsupportedCapture{} }

// OutputCompare is not available on this bridge.
func (p *piBridge) OutputCompare() OutputCompare { return unsupportedOutputCompare{} }

// Close brings the pins back to a safe (input) state.
func (p *piBridge) Close() error {
	for _, pin := range p.pins {
		pin.SetDirection(PinDirectionInput)
	}
	return nil
}

// piPin drives a single sysfs GPIO pin. The pin is re-exported whenever the
// direction changes.
type piPin struct {
	mutex  sync.Mutex
	number int
	output gpio.OutputPin
	input  gpio.InputPin
	level  bool
}

func (p *piPin) SetDirection(direction PinDirection) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if direction == PinDirectionInput {
		p.output = nil
		in, err := gpio.Input(p.number, false)
		if err != nil {
			return maskAny(err)
		}
		p.input = in
		return nil
	}
	p.input = nil
	out, err := gpio.Output(p.number, false, p.level)
	if err != nil {
		return maskAny(err)
	}
	p.output = out
	return nil
}

func (p *piPin) Set(value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.level = value
	if p.output == nil {
		return nil
	}
	if err := p.output.Write(value); err != nil {
		return maskAny(err)
	}
	return nil
}

func (p *piPin) Get() (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.input != nil {
		value, err := p.input.Read()
		if err != nil {
			return false, maskAny(err)
		}
		return value, nil
	}
	return p.level, nil
}

func (p *piPin) Settle() {
	// Sysfs reads are slow enough that the input buffer has long settled;
	// keep a symbolic delay for parity with the probe.
	time.Sleep(time.Microsecond)
}

type unsupportedTimer struct{}

func (unsupportedTimer) Clear() error                              { return maskAny(NotSupportedError) }
func (unsupportedTimer) SetPrescale(Prescale) error                { return maskAny(NotSupportedError) }
func (unsupportedTimer) SetPeriod(uint32) error                    { return maskAny(NotSupportedError) }
func (unsupportedTimer) ResetCounter() error                       { return maskAny(NotSupportedError) }
func (unsupportedTimer) ReadCounter() (uint32, error)              { return 0, maskAny(NotSupportedError) }
func (unsupportedTimer) UseExternalClock(model.PhysicalPin) error  { return maskAny(NotSupportedError) }
func (unsupportedTimer) UseInternalClock() error                   { return maskAny(NotSupportedError) }
func (unsupportedTimer) Start() error                              { return maskAny(NotSupportedError) }
func (unsupportedTimer) Stop() error                               { return maskAny(NotSupportedError) }
func (unsupportedTimer) WaitPeriodElapsed(context.Context) error   { return maskAny(NotSupportedError) }

type unsupportedCapture struct{}

func (unsupportedCapture) Arm(model.PhysicalPin) error           { return maskAny(NotSupportedError) }
func (unsupportedCapture) Disarm() error                         { return maskAny(NotSupportedError) }
func (unsupportedCapture) HasData() (bool, error)                { return false, maskAny(NotSupportedError) }
func (unsupportedCapture) Read() (uint16, error)                 { return 0, maskAny(NotSupportedError) }
func (unsupportedCapture) WaitData(context.Context) error        { return maskAny(NotSupportedError) }

type unsupportedOutputCompare struct{}

func (unsupportedOutputCompare) Clear() error                   { return maskAny(NotSupportedError) }
func (unsupportedOutputCompare) Route(model.PhysicalPin) error  { return maskAny(NotSupportedError) }
func (unsupportedOutputCompare) Detach() error                  { return maskAny(NotSupportedError) }
func (unsupportedOutputCompare) SetCompare(uint32) error        { return maskAny(NotSupportedError) }
func (unsupportedOutputCompare) EnablePWM() error               { return maskAny(NotSupportedError) }
