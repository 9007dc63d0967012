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
	"context"

	"github.com/probeworks/auxpin/model"
	"github.com/probeworks/auxpin/service/bridge"
)

const (
	// MaxPWMFrequency is the exclusive upper bound of the PWM frequency in Hz.
	MaxPWMFrequency = 4000
	// MaxDutyCycle is the inclusive upper bound of the duty cycle in percent.
	// 100% would wrap the on-time past the period register.
	MaxDutyCycle = 99
	// MaxServoAngle is the inclusive upper bound of the servo angle in degrees.
	MaxServoAngle = 180

	// Servo carrier: 50 Hz at 1:64 prescale; 1250 register ticks per ~20ms
	// period, with the angle mapped onto a ~1-2ms pulse above a fixed offset.
	servoPeriod      = 1250
	servoAngleScale  = 3500
	servoPulseOffset = 62
)

// PrescalerChoice pairs a frequency divisor with the timer prescale tier it
// assumes. It is derived on demand, never stored.
type PrescalerChoice struct {
	Divisor  uint32
	Prescale bridge.Prescale
}

// prescalerChoiceFor selects the prescaler tier for the given PWM frequency.
func prescalerChoiceFor(frequency uint32) PrescalerChoice {
	if frequency < 4 {
		return PrescalerChoice{Divisor: 62, Prescale: bridge.Prescale256}
	}
	if frequency < 31 {
		return PrescalerChoice{Divisor: 250, Prescale: bridge.Prescale64}
	}
	if frequency < 245 {
		return PrescalerChoice{Divisor: 2000, Prescale: bridge.Prescale8}
	}
	return PrescalerChoice{Divisor: 16000, Prescale: bridge.Prescale1}
}

// ProgramPWM computes period and on-time register values for the given
// frequency (Hz) and duty cycle (percent) and programs the waveform
// hardware. Frequency 0 is the sentinel that disables PWM and returns the
// pin to IO mode; it is the only programmatic way to turn PWM off.
func (m *Manager) ProgramPWM(ctx context.Context, frequency, dutyCycle uint32) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.programPWM(ctx, frequency, dutyCycle)
}

// UpdateDutyCycle reprograms the waveform with the recorded frequency and
// the given duty cycle.
func (m *Manager) UpdateDutyCycle(ctx context.Context, dutyCycle uint32) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.programPWM(ctx, m.state.pwmFrequency, dutyCycle)
}

// programPWM implements ProgramPWM. Callers must hold m.mutex.
func (m *Manager) programPWM(ctx context.Context, frequency, dutyCycle uint32) error {
	if frequency >= MaxPWMFrequency {
		return model.InvalidArgument("frequency must be below %d Hz, got %d", MaxPWMFrequency, frequency)
	}
	if dutyCycle > MaxDutyCycle {
		return model.InvalidArgument("duty cycle must be in 0..%d range, got %d", MaxDutyCycle, dutyCycle)
	}

	m.state.pwmFrequency = frequency
	m.state.pwmDutyCycle = dutyCycle

	// Shut the shared timer hardware down before reprogramming, even when
	// already in PWM mode; stale bits from a previous waveform or
	// measurement must not survive.
	if err := m.clearWaveformHardware(); err != nil {
		return maskAny(err)
	}

	if frequency == 0 {
		// Detach the pin from the waveform generator.
		if err := m.Bridge.OutputCompare().Detach(); err != nil {
			return maskAny(err)
		}
		m.state.mode = model.AuxModeIO
		modeGauge.Set(float64(model.AuxModeIO))
		m.publishWaveform()
		m.Log.Debug().Msg("pwm disabled")
		return nil
	}

	choice := prescalerChoiceFor(frequency)
	timer := m.Bridge.CountTimer()
	if err := timer.SetPrescale(choice.Prescale); err != nil {
		return maskAny(err)
	}
	// Integer division: the period register approximates the requested
	// frequency, it does not guarantee it.
	period := choice.Divisor/frequency - 1
	if err := timer.SetPeriod(period); err != nil {
		return maskAny(err)
	}
	onTime := period * dutyCycle / 100

	oc := m.Bridge.OutputCompare()
	if err := oc.Route(m.Pins.AuxPin()); err != nil {
		return maskAny(err)
	}
	if err := oc.SetCompare(onTime); err != nil {
		return maskAny(err)
	}
	if err := oc.EnablePWM(); err != nil {
		return maskAny(err)
	}
	if err := timer.Start(); err != nil {
		return maskAny(err)
	}

	m.state.mode = model.AuxModePWM
	modeGauge.Set(float64(model.AuxModePWM))
	pwmProgramsTotal.Inc()
	m.publishWaveform()
	m.Log.Debug().
		Uint32("frequency", frequency).
		Uint32("duty-cycle", dutyCycle).
		Uint32("period", period).
		Uint32("on-time", onTime).
		Msg("pwm programmed")
	return nil
}

// ProgramServo programs the fixed 50 Hz servo carrier with a pulse width
// for the given angle in degrees.
func (m *Manager) ProgramServo(ctx context.Context, angle uint32) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.programServo(ctx, angle)
}

// programServo implements ProgramServo. Callers must hold m.mutex.
func (m *Manager) programServo(ctx context.Context, angle uint32) error {
	if angle > MaxServoAngle {
		return model.InvalidArgument("angle must be in 0..%d range, got %d", MaxServoAngle, angle)
	}

	if err := m.clearWaveformHardware(); err != nil {
		return maskAny(err)
	}

	timer := m.Bridge.CountTimer()
	if err := timer.SetPrescale(bridge.Prescale64); err != nil {
		return maskAny(err)
	}
	onTime := servoOnTime(angle)

	oc := m.Bridge.OutputCompare()
	if err := oc.Route(m.Pins.AuxPin()); err != nil {
		return maskAny(err)
	}
	if err := oc.SetCompare(onTime); err != nil {
		return maskAny(err)
	}
	if err := oc.EnablePWM(); err != nil {
		return maskAny(err)
	}
	if err := timer.SetPeriod(servoPeriod); err != nil {
		return maskAny(err)
	}
	if err := timer.Start(); err != nil {
		return maskAny(err)
	}

	m.state.mode = model.AuxModePWM
	modeGauge.Set(float64(model.AuxModePWM))
	servoProgramsTotal.Inc()
	m.publishWaveform()
	m.Log.Debug().
		Uint32("angle", angle).
		Uint32("on-time", onTime).
		Msg("servo programmed")
	return nil
}

// servoOnTime maps an angle in degrees onto the servo pulse width in
// register ticks (affine, integer truncation).
func servoOnTime(angle uint32) uint32 {
	return servoPeriod*angle/servoAngleScale + servoPulseOffset
}
