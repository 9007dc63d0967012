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
	"github.com/probeworks/auxpin/service/bridge"
)

// Digital I/O operates directly on the selected physical pin's direction
// and level registers, regardless of the current AUX mode. Reading while
// PWM is active reads the waveform pin state; that is an accepted quirk.

// SetHigh drives the AUX pin high.
func (m *Manager) SetHigh() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	pin := m.auxPin()
	if err := pin.SetDirection(bridge.PinDirectionOutput); err != nil {
		return maskAny(err)
	}
	if err := pin.Set(true); err != nil {
		return maskAny(err)
	}
	m.Log.Debug().Str("pin", m.Pins.AuxPin().String()).Msg("aux high")
	return nil
}

// SetLow drives the AUX pin low.
func (m *Manager) SetLow() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	pin := m.auxPin()
	if err := pin.SetDirection(bridge.PinDirectionOutput); err != nil {
		return maskAny(err)
	}
	if err := pin.Set(false); err != nil {
		return maskAny(err)
	}
	m.Log.Debug().Str("pin", m.Pins.AuxPin().String()).Msg("aux low")
	return nil
}

// SetHighImpedance releases the AUX pin by switching it to input.
func (m *Manager) SetHighImpedance() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.auxPin().SetDirection(bridge.PinDirectionInput); err != nil {
		return maskAny(err)
	}
	m.Log.Debug().Str("pin", m.Pins.AuxPin().String()).Msg("aux input")
	return nil
}

// Read switches the AUX pin to input and samples its level, after a settle
// delay for input buffer propagation. An unresolvable pin selection reads
// back low; it never faults.
func (m *Manager) Read() (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	pin := m.auxPin()
	if err := pin.SetDirection(bridge.PinDirectionInput); err != nil {
		return false, maskAny(err)
	}
	pin.Settle()
	value, err := pin.Get()
	if err != nil {
		return false, maskAny(err)
	}
	return value, nil
}

// auxPin resolves the physical pin currently designated as AUX.
// Callers must hold m.mutex.
func (m *Manager) auxPin() bridge.Pin {
	return m.Bridge.Pin(m.Pins.AuxPin())
}
