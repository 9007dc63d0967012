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
)

// NumberPrompter requests a bounded integer from the user. It is provided
// by the command prompt layer; this package only consumes it.
type NumberPrompter interface {
	// RequestNumber prompts for an integer in the [min, max] range,
	// offering the given default. When acceptDecline is set, a negative
	// entry is returned as-is and means "cancel".
	RequestNumber(ctx context.Context, prompt string, def, min, max int, acceptDecline bool) (int, error)
}

// Console receives the user facing output of interactive commands.
type Console interface {
	// Print writes a message without a line break.
	Print(msg string)
	// Println writes a message followed by a line break.
	Println(msg string)
}

// RunPWMCommand is the interactive PWM setup, fed with any numeric
// arguments already tokenized from the command line (frequency, duty
// cycle). Invoked while PWM is active it first stops the waveform, and
// returns right away when no arguments were supplied. Missing or
// out-of-range parameters are prompted for.
func (m *Manager) RunPWMCommand(ctx context.Context, args []int, prompter NumberPrompter, console Console) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Cleanup timers.
	if err := m.clearWaveformHardware(); err != nil {
		return maskAny(err)
	}

	if m.state.mode == model.AuxModePWM {
		// PWM is on, stop it.
		if err := m.stopPWM(); err != nil {
			return maskAny(err)
		}
		console.Println(MsgPWMDisabled)
		if len(args) == 0 {
			return nil
		}
	}

	var frequency, dutyCycle int
	done := false
	if len(args) >= 2 {
		frequency, dutyCycle = args[0], args[1]
		done = frequency > 0 && frequency < MaxPWMFrequency &&
			dutyCycle > 0 && dutyCycle < 100
	}
	if !done {
		value, err := prompter.RequestNumber(ctx, "Frequency in Hz", 50, 1, MaxPWMFrequency, false)
		if err != nil {
			return maskAny(err)
		}
		frequency = value
		value, err = prompter.RequestNumber(ctx, "Duty cycle in %", 50, 0, MaxDutyCycle, false)
		if err != nil {
			return maskAny(err)
		}
		dutyCycle = value
	}

	if err := m.programPWM(ctx, uint32(frequency), uint32(dutyCycle)); err != nil {
		return maskAny(err)
	}
	console.Println(MsgPWMActive)
	return nil
}

// RunServoCommand is the interactive servo setup. Invoked while PWM is
// active with no arguments it stops the waveform and returns. When the
// angle had to be prompted for, it keeps re-prompting for new angles until
// the user declines with a negative entry.
func (m *Manager) RunServoCommand(ctx context.Context, args []int, prompter NumberPrompter, console Console) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.clearWaveformHardware(); err != nil {
		return maskAny(err)
	}

	if m.state.mode == model.AuxModePWM && len(args) == 0 {
		// No extra data, stop the servo.
		if err := m.stopPWM(); err != nil {
			return maskAny(err)
		}
		console.Println(MsgPWMDisabled)
		return nil
	}

	angle := -1
	if len(args) >= 1 {
		angle = args[0]
	}
	entryLoop := false
	if angle < 0 || angle > MaxServoAngle {
		value, err := prompter.RequestNumber(ctx, "Servo position in degrees", 90, 0, MaxServoAngle, false)
		if err != nil {
			return maskAny(err)
		}
		angle = value
		entryLoop = true
	}

	for {
		if err := m.programServo(ctx, uint32(angle)); err != nil {
			return maskAny(err)
		}
		console.Println(MsgServoActive)
		if !entryLoop {
			return nil
		}
		value, err := prompter.RequestNumber(ctx, "Servo position in degrees", -1, 0, MaxServoAngle, true)
		if err != nil {
			return maskAny(err)
		}
		if value < 0 {
			console.Println("")
			return nil
		}
		angle = value
	}
}

// RunFrequencyCommand is the interactive frequency counter. It refuses
// when PWM owns the timer hardware, otherwise measures and prints the
// result at the appropriate resolution.
func (m *Manager) RunFrequencyCommand(ctx context.Context, console Console) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.state.mode == model.AuxModePWM {
		console.Println(MsgFrequencyPWMConflict)
		return maskAny(ErrPWMActive)
	}

	console.Print(MsgFrequencyPrefix)
	measurement, err := m.measure(ctx, func() {
		console.Println(MsgAutorange)
	})
	if err != nil {
		return maskAny(err)
	}
	if measurement.Zero() {
		console.Println(MsgFrequencyTooLow)
		return nil
	}
	console.Println(measurement.String())
	return nil
}
