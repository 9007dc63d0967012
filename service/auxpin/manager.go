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

package auxpin

import (
	"sync"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/rs/zerolog"

	"github.com/probeworks/auxpin/model"
	"github.com/probeworks/auxpin/service/bridge"
)

// Dependencies of the AUX pin manager.
type Dependencies struct {
	Log    zerolog.Logger
	Bridge bridge.API
	// Pins is the read-only mode configuration store that designates the
	// physical AUX pin.
	Pins model.PinSelector
}

// Manager owns the AUX pin: its mode, the PWM/servo generator and the
// frequency counter. All operations are serialized by a single mutex;
// whichever mode holds the shared timer hardware holds it exclusively
// until its operation completes.
type Manager struct {
	Dependencies

	mutex  sync.Mutex
	state  auxState
	events *eventService
}

// auxState is the volatile AUX pin state, alive from power-on to power-off.
type auxState struct {
	mode         model.AuxMode
	pwmFrequency uint32
	pwmDutyCycle uint32
}

// NewManager creates a Manager with given dependencies.
func NewManager(deps Dependencies) *Manager {
	deps.Log = deps.Log.With().Str("component", "aux").Logger()
	return &Manager{
		Dependencies: deps,
		events:       newEventService(deps.Log),
	}
}

// Status is a snapshot of the AUX pin state.
type Status struct {
	Mode         string `json:"mode"`
	Pin          string `json:"pin"`
	PWMFrequency uint32 `json:"pwm-frequency"`
	PWMDutyCycle uint32 `json:"pwm-duty-cycle"`
}

// Status returns a snapshot of the AUX pin state.
func (m *Manager) Status() Status {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return Status{
		Mode:         m.state.mode.String(),
		Pin:          m.Pins.AuxPin().String(),
		PWMFrequency: m.state.pwmFrequency,
		PWMDutyCycle: m.state.pwmDutyCycle,
	}
}

// Mode returns the current AUX pin mode.
func (m *Manager) Mode() model.AuxMode {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state.mode
}

// SetMode transitions the AUX pin mode, tearing down the previous mode's
// hardware ownership before the new mode takes effect.
func (m *Manager) SetMode(newMode model.AuxMode) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.setMode(newMode)
}

// setMode implements the mode transition rules. Callers must hold m.mutex.
func (m *Manager) setMode(newMode model.AuxMode) error {
	switch newMode {
	case model.AuxModeIO:
		if m.state.mode == model.AuxModePWM {
			if err := m.detachWaveform(); err != nil {
				return maskAny(err)
			}
		}
	case model.AuxModeFrequency:
		if m.state.mode == model.AuxModePWM {
			return maskAny(ErrPWMActive)
		}
	case model.AuxModePWM:
		// Stale register bits from a previous waveform or measurement must
		// not survive; clear unconditionally, even when already in PWM mode.
		if err := m.clearWaveformHardware(); err != nil {
			return maskAny(err)
		}
	}
	m.state.mode = newMode
	modeGauge.Set(float64(newMode))
	return nil
}

// clearWaveformHardware stops both timer units and the output-compare unit.
// Callers must hold m.mutex.
func (m *Manager) clearWaveformHardware() error {
	var ae aerr.AggregateError
	if err := m.Bridge.CountTimer().Clear(); err != nil {
		ae.Add(maskAny(err))
	}
	if err := m.Bridge.WindowTimer().Clear(); err != nil {
		ae.Add(maskAny(err))
	}
	if err := m.Bridge.OutputCompare().Clear(); err != nil {
		ae.Add(maskAny(err))
	}
	return ae.AsError()
}

// detachWaveform removes the output-compare unit from the physical pin and
// forgets the programmed PWM frequency, in that order. Callers must hold
// m.mutex.
func (m *Manager) detachWaveform() error {
	if err := m.Bridge.OutputCompare().Detach(); err != nil {
		return maskAny(err)
	}
	m.state.pwmFrequency = 0
	return nil
}

// stopPWM detaches the waveform and returns the pin to IO mode.
// Callers must hold m.mutex.
func (m *Manager) stopPWM() error {
	if err := m.detachWaveform(); err != nil {
		return maskAny(err)
	}
	m.state.mode = model.AuxModeIO
	modeGauge.Set(float64(model.AuxModeIO))
	m.publishWaveform()
	return nil
}

// publishWaveform emits a waveform event for the current state.
// Callers must hold m.mutex.
func (m *Manager) publishWaveform() {
	m.events.publishWaveform(WaveformEvent{
		Mode:      m.state.mode.String(),
		Frequency: m.state.pwmFrequency,
		DutyCycle: m.state.pwmDutyCycle,
	})
}

// SubscribeWaveform registers a callback for waveform state changes.
// The returned function cancels the registration.
func (m *Manager) SubscribeWaveform(cb func(WaveformEvent)) func() {
	return m.events.SubscribeWaveform(cb)
}

// SubscribeFrequency registers a callback for completed frequency
// measurements. The returned function cancels the registration.
func (m *Manager) SubscribeFrequency(cb func(FrequencyEvent)) func() {
	return m.events.SubscribeFrequency(cb)
}
