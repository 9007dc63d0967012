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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/probeworks/auxpin/model"
)

// SimConfig configures the simulated bridge.
type SimConfig struct {
	// SignalHz is the frequency of the simulated signal driving the pins.
	// Zero means no signal: waits for capture data block until the context
	// is canceled, like the real silicon on a silent pin.
	SignalHz float64
	// TimeScale scales the wall clock time spent in measurement windows.
	// 1.0 waits in real time, 0 returns immediately.
	TimeScale float64
}

// SimBridge is an in-memory implementation of the bridge API. It behaves
// like the probe's timer/capture silicon fed by a perfectly stable external
// signal, which makes it usable both for tests and for running the worker
// without a probe attached.
type SimBridge struct {
	mutex     sync.Mutex
	log       zerolog.Logger
	signalHz  float64
	timeScale float64
	pins      [model.NumPhysicalPins]*simPin
	count     *simTimer
	window    *simTimer
	captures  [2]*simCapture
	oc        *simOutputCompare
	capTicks  uint32
	ops       []string
}

// NewSimBridge creates a simulated bridge.
func NewSimBridge(cfg SimConfig, log zerolog.Logger) *SimBridge {
	s := &SimBridge{
		log:       log.With().Str("component", "sim-bridge").Logger(),
		signalHz:  cfg.SignalHz,
		timeScale: cfg.TimeScale,
	}
	for i := range s.pins {
		s.pins[i] = &simPin{bridge: s, pin: model.PhysicalPin(i)}
	}
	s.count = &simTimer{bridge: s, name: "count"}
	s.window = &simTimer{bridge: s, name: "window"}
	s.captures[0] = &simCapture{bridge: s, index: 0}
	s.captures[1] = &simCapture{bridge: s, index: 1}
	s.oc = &simOutputCompare{bridge: s}
	return s
}

// Pin returns the direction/level registers of the given physical pin.
func (s *SimBridge) Pin(pin model.PhysicalPin) Pin {
	return s.pins[int(pin)%len(s.pins)]
}

// CountTimer returns the edge counting timer unit.
func (s *SimBridge) CountTimer() Timer { return s.count }

// WindowTimer returns the gate window timer unit.
func (s *SimBridge) WindowTimer() Timer { return s.window }

// Capture returns the input capture unit with given index.
func (s *SimBridge) Capture(index int) CaptureUnit {
	return s.captures[index%len(s.captures)]
}

// OutputCompare returns the waveform generation unit.
func (s *SimBridge) OutputCompare() OutputCompare { return s.oc }

// Close brings the simulated hardware back to a safe state.
func (s *SimBridge) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.count.reset()
	s.window.reset()
	s.oc.routed = false
	s.oc.pwm = false
	for _, c := range s.captures {
		c.armed = false
		c.buf = nil
	}
	return nil
}

// SetSignal changes the frequency of the simulated external signal.
func (s *SimBridge) SetSignal(hz float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.signalHz = hz
}

// DrivePin drives the simulated external level seen by the given pin when
// it is configured as input.
func (s *SimBridge) DrivePin(pin model.PhysicalPin, level bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pins[int(pin)%len(s.pins)].extLevel = level
}

// Ops returns the recorded hardware operations since the last ResetOps.
func (s *SimBridge) Ops() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result := make([]string, len(s.ops))
	copy(result, s.ops)
	return result
}

// ResetOps clears the recorded hardware operations.
func (s *SimBridge) ResetOps() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ops = nil
}

// TimerState is a snapshot of a simulated timer unit.
type TimerState struct {
	Running       bool
	Prescale      Prescale
	Period        uint32
	Counter       uint32
	ExternalClock bool
}

// CountTimerState returns a snapshot of the edge counting timer.
func (s *SimBridge) CountTimerState() TimerState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.count.state()
}

// WindowTimerState returns a snapshot of the gate window timer.
func (s *SimBridge) WindowTimerState() TimerState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.window.state()
}

// OutputState is a snapshot of the simulated output compare unit.
type OutputState struct {
	Routed     bool
	Pin        model.PhysicalPin
	Compare    uint32
	PWMEnabled bool
}

// OutputCompareState returns a snapshot of the output compare unit.
func (s *SimBridge) OutputCompareState() OutputState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return OutputState{
		Routed:     s.oc.routed,
		Pin:        s.oc.pin,
		Compare:    s.oc.compare,
		PWMEnabled: s.oc.pwm,
	}
}

// record appends a hardware operation. Callers must hold the mutex.
func (s *SimBridge) record(format string, args ...interface{}) {
	s.ops = append(s.ops, fmt.Sprintf(format, args...))
}

// applyGate accumulates edges into all running externally clocked timers
// for a gate window of the given (simulated) duration.
// Callers must hold the mutex.
func (s *SimBridge) applyGate(d time.Duration) {
	for _, t := range []*simTimer{s.count, s.window} {
		if t.running && t.external {
			edges := s.signalHz * d.Seconds() / float64(t.prescale.Ratio())
			t.counter += uint32(edges)
		}
	}
}

type simPin struct {
	bridge    *SimBridge
	pin       model.PhysicalPin
	direction PinDirection
	level     bool
	extLevel  bool
	settled   bool
}

func (p *simPin) SetDirection(direction PinDirection) error {
	p.bridge.mutex.Lock()
	defer p.bridge.mutex.Unlock()
	p.direction = direction
	p.settled = false
	if direction == PinDirectionInput {
		p.bridge.record("%s:dir=input", p.pin)
	} else {
		p.bridge.record("%s:dir=output", p.pin)
	}
	return nil
}

func (p *simPin) Set(value bool) error {
	p.bridge.mutex.Lock()
	defer p.bridge.mutex.Unlock()
	p.level = value
	p.bridge.record("%s:set=%v", p.pin, value)
	return nil
}

func (p *simPin) Get() (bool, error) {
	p.bridge.mutex.Lock()
	defer p.bridge.mutex.Unlock()
	p.bridge.record("%s:get", p.pin)
	if p.direction == PinDirectionInput {
		return p.extLevel, nil
	}
	return p.level, nil
}

func (p *simPin) Settle() {
	p.bridge.mutex.Lock()
	defer p.bridge.mutex.Unlock()
	p.settled = true
	p.bridge.record("%s:settle", p.pin)
}

type simTimer struct {
	bridge   *SimBridge
	name     string
	running  bool
	prescale Prescale
	period   uint32
	counter  uint32
	external bool
	clockPin model.PhysicalPin
}

func (t *simTimer) state() TimerState {
	return TimerState{
		Running:       t.running,
		Prescale:      t.prescale,
		Period:        t.period,
		Counter:       t.counter,
		ExternalClock: t.external,
	}
}

// reset clears control state. Callers must hold the mutex.
func (t *simTimer) reset() {
	t.running = false
	t.prescale = Prescale1
	t.external = false
}

func (t *simTimer) Clear() error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.reset()
	t.bridge.record("timer-%s:clear", t.name)
	return nil
}

func (t *simTimer) SetPrescale(p Prescale) error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.prescale = p
	t.bridge.record("timer-%s:prescale=1:%d", t.name, p.Ratio())
	return nil
}

func (t *simTimer) SetPeriod(period uint32) error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.period = period
	t.bridge.record("timer-%s:period=%d", t.name, period)
	return nil
}

func (t *simTimer) ResetCounter() error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.counter = 0
	t.bridge.record("timer-%s:reset-counter", t.name)
	return nil
}

func (t *simTimer) ReadCounter() (uint32, error) {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.bridge.record("timer-%s:read-counter", t.name)
	return t.counter, nil
}

func (t *simTimer) UseExternalClock(pin model.PhysicalPin) error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.external = true
	t.clockPin = pin
	t.bridge.record("timer-%s:clock=%s", t.name, pin)
	return nil
}

func (t *simTimer) UseInternalClock() error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.external = false
	t.bridge.record("timer-%s:clock=internal", t.name)
	return nil
}

func (t *simTimer) Start() error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.running = true
	t.bridge.record("timer-%s:start", t.name)
	return nil
}

func (t *simTimer) Stop() error {
	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.running = false
	t.bridge.record("timer-%s:stop", t.name)
	return nil
}

func (t *simTimer) WaitPeriodElapsed(ctx context.Context) error {
	t.bridge.mutex.Lock()
	gate := time.Duration(float64(t.period) / InstructionClockHz * float64(time.Second))
	scaled := time.Duration(float64(gate) * t.bridge.timeScale)
	t.bridge.mutex.Unlock()

	if scaled > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(scaled):
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	t.bridge.mutex.Lock()
	defer t.bridge.mutex.Unlock()
	t.bridge.applyGate(gate)
	t.bridge.record("timer-%s:period-elapsed", t.name)
	return nil
}

type simCapture struct {
	bridge *SimBridge
	index  int
	armed  bool
	pin    model.PhysicalPin
	buf    []uint16
}

func (c *simCapture) Arm(pin model.PhysicalPin) error {
	c.bridge.mutex.Lock()
	defer c.bridge.mutex.Unlock()
	c.armed = true
	c.pin = pin
	// An edge may arrive between arming and the first read; simulate one
	// stale capture so flushing is observable.
	c.buf = append(c.buf[:0], c.word(c.bridge.capTicks))
	c.bridge.record("capture-%d:arm=%s", c.index, pin)
	return nil
}

func (c *simCapture) Disarm() error {
	c.bridge.mutex.Lock()
	defer c.bridge.mutex.Unlock()
	c.armed = false
	c.buf = nil
	c.bridge.record("capture-%d:disarm", c.index)
	return nil
}

func (c *simCapture) HasData() (bool, error) {
	c.bridge.mutex.Lock()
	defer c.bridge.mutex.Unlock()
	return len(c.buf) > 0, nil
}

func (c *simCapture) Read() (uint16, error) {
	c.bridge.mutex.Lock()
	defer c.bridge.mutex.Unlock()
	if len(c.buf) == 0 {
		return 0, maskAny(NotReadyError)
	}
	value := c.buf[0]
	c.buf = c.buf[1:]
	return value, nil
}

func (c *simCapture) WaitData(ctx context.Context) error {
	c.bridge.mutex.Lock()
	if len(c.buf) > 0 {
		c.bridge.mutex.Unlock()
		return nil
	}
	if c.bridge.signalHz <= 0 {
		// Silent signal: block until canceled, like the real hardware.
		c.bridge.mutex.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	interval := uint32(math.Round(InstructionClockHz / c.bridge.signalHz))
	c.bridge.capTicks += interval
	ticks := c.bridge.capTicks
	for _, unit := range c.bridge.captures {
		if unit.armed {
			unit.buf = append(unit.buf, unit.word(ticks))
		}
	}
	scaled := time.Duration(float64(interval) / InstructionClockHz * float64(time.Second) * c.bridge.timeScale)
	c.bridge.mutex.Unlock()

	if scaled > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(scaled):
		}
	}
	return nil
}

// word extracts this unit's word of the virtual 32-bit capture timestamp.
func (c *simCapture) word(ticks uint32) uint16 {
	if c.index == 0 {
		return uint16(ticks & 0xFFFF)
	}
	return uint16(ticks >> 16)
}

type simOutputCompare struct {
	bridge  *SimBridge
	routed  bool
	pin     model.PhysicalPin
	compare uint32
	pwm     bool
}

func (o *simOutputCompare) Clear() error {
	o.bridge.mutex.Lock()
	defer o.bridge.mutex.Unlock()
	// Clearing the control register stops the waveform but does not detach
	// the pin routing.
	o.pwm = false
	o.compare = 0
	o.bridge.record("oc:clear")
	return nil
}

func (o *simOutputCompare) Route(pin model.PhysicalPin) error {
	o.bridge.mutex.Lock()
	defer o.bridge.mutex.Unlock()
	o.routed = true
	o.pin = pin
	o.bridge.record("oc:route=%s", pin)
	return nil
}

func (o *simOutputCompare) Detach() error {
	o.bridge.mutex.Lock()
	defer o.bridge.mutex.Unlock()
	o.routed = false
	o.bridge.record("oc:detach")
	return nil
}

func (o *simOutputCompare) SetCompare(onTime uint32) error {
	o.bridge.mutex.Lock()
	defer o.bridge.mutex.Unlock()
	o.compare = onTime
	o.bridge.record("oc:compare=%d", onTime)
	return nil
}

func (o *simOutputCompare) EnablePWM() error {
	o.bridge.mutex.Lock()
	defer o.bridge.mutex.Unlock()
	o.pwm = true
	o.bridge.record("oc:pwm-enabled")
	return nil
}
