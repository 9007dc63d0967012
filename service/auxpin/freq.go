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
	"time"

	"github.com/probeworks/auxpin/model"
	"github.com/probeworks/auxpin/service/bridge"
)

const (
	// gateWindowTicks is one second of instruction clock, the fixed gate
	// window of the coarse edge counting pass.
	gateWindowTicks = 16000000
	// freeRunPeriod keeps the count timer free running during a gate window.
	freeRunPeriod = 0xFFFFFFFF
	// prescaledCountCeiling: above this 1:256 gated count the prescaled
	// reading already resolves; at or below it a second 1:1 pass refines.
	prescaledCountCeiling = 0x3FFF
	// quickCountCeiling is the autorange threshold of the coarse-only
	// measurement used by macros.
	quickCountCeiling = 0xFF
	// edgeCountCeiling: at or below this refined count (~4 kHz) counting
	// edges is inferior to measuring periods.
	edgeCountCeiling = 3999
)

// Strategy identifies how a measurement was taken.
type Strategy string

const (
	StrategyEdgeCount     Strategy = "edge-count"
	StrategyPeriodAverage Strategy = "period-average"
)

// Measurement is the result of a frequency measurement.
type Measurement struct {
	// Strategy used to take this measurement.
	Strategy Strategy `json:"strategy"`
	// Frequency in Hz as counted by the edge counting pass.
	// For StrategyPeriodAverage this is the coarse count that sized the
	// period sample run.
	Frequency uint64 `json:"frequency"`
	// AvgPeriodTicks is the average interval between rising edges in
	// instruction clock ticks. Only set for StrategyPeriodAverage.
	AvgPeriodTicks uint64 `json:"avg-period-ticks,omitempty"`
}

// Zero returns true when no signal was measured.
func (m Measurement) Zero() bool {
	return m.Strategy != StrategyPeriodAverage && m.Frequency == 0
}

// Hertz returns the measured frequency as a floating point number.
func (m Measurement) Hertz() float64 {
	if m.Strategy == StrategyPeriodAverage && m.AvgPeriodTicks > 0 {
		return float64(bridge.InstructionClockHz) / float64(m.AvgPeriodTicks)
	}
	return float64(m.Frequency)
}

// MeasureFrequency measures the frequency of the signal on the AUX pin,
// choosing between edge counting and period averaging for maximum
// resolution. It blocks for one or two one-second gate windows plus the
// period sampling time; a silent signal during period sampling blocks
// until the context is canceled (no timeout, by design).
func (m *Manager) MeasureFrequency(ctx context.Context) (Measurement, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.state.mode == model.AuxModePWM {
		return Measurement{}, maskAny(ErrPWMActive)
	}
	return m.measure(ctx, nil)
}

// measure runs a full measurement and records metrics and events.
// Callers must hold m.mutex and have checked for a PWM conflict.
func (m *Manager) measure(ctx context.Context, autorange func()) (Measurement, error) {
	start := time.Now()
	result, err := m.measureFrequency(ctx, autorange)
	if err != nil {
		return Measurement{}, maskAny(err)
	}
	measurementDuration.Observe(time.Since(start).Seconds())
	measurementsTotal.WithLabelValues(string(result.Strategy)).Inc()
	m.events.publishFrequency(FrequencyEvent{Measurement: result, Time: time.Now()})
	m.Log.Debug().
		Str("strategy", string(result.Strategy)).
		Uint64("frequency", result.Frequency).
		Uint64("avg-period-ticks", result.AvgPeriodTicks).
		Msg("frequency measured")
	return result, nil
}

// measureFrequency implements the dual strategy measurement.
// The autorange callback, when not nil, is invoked whenever the measurement
// switches to a higher resolution strategy. Callers must hold m.mutex.
func (m *Manager) measureFrequency(ctx context.Context, autorange func()) (Measurement, error) {
	count := m.Bridge.CountTimer()
	window := m.Bridge.WindowTimer()
	pinID := m.Pins.AuxPin()

	// Make sure the counters are off.
	if err := window.Clear(); err != nil {
		return Measurement{}, maskAny(err)
	}
	if err := count.Clear(); err != nil {
		return Measurement{}, maskAny(err)
	}

	// Route the external signal into the count timer.
	if err := m.Bridge.Pin(pinID).SetDirection(bridge.PinDirectionInput); err != nil {
		return Measurement{}, maskAny(err)
	}
	if err := count.UseExternalClock(pinID); err != nil {
		return Measurement{}, maskAny(err)
	}

	m.state.mode = model.AuxModeFrequency
	modeGauge.Set(float64(model.AuxModeFrequency))
	defer func() {
		// Disconnect the pin and stop both timer units on every exit path.
		count.UseInternalClock()
		window.Clear()
		count.Clear()
		m.state.mode = model.AuxModeIO
		modeGauge.Set(float64(model.AuxModeIO))
	}()

	if err := count.SetPrescale(bridge.Prescale256); err != nil {
		return Measurement{}, maskAny(err)
	}
	f, err := m.pollCounterWindow(ctx, count, window)
	if err != nil {
		return Measurement{}, maskAny(err)
	}

	if f > prescaledCountCeiling {
		// Fast signal: the prescaled count already resolves; recover the
		// true frequency.
		f *= 256
	} else {
		// Get a more accurate reading without the prescaler.
		if autorange != nil {
			autorange()
		}
		if err := count.SetPrescale(bridge.Prescale1); err != nil {
			return Measurement{}, maskAny(err)
		}
		f, err = m.pollCounterWindow(ctx, count, window)
		if err != nil {
			return Measurement{}, maskAny(err)
		}
	}

	if f > edgeCountCeiling {
		return Measurement{Strategy: StrategyEdgeCount, Frequency: uint64(f)}, nil
	}
	if f == 0 {
		return Measurement{Strategy: StrategyEdgeCount}, nil
	}

	// Below ~4 kHz counting edges is inferior to measuring periods; sample
	// as many periods as the coarse pass counted edges in one second.
	if autorange != nil {
		autorange()
	}
	avg, err := m.samplePeriodAverage(ctx, uint16(f))
	if err != nil {
		return Measurement{}, maskAny(err)
	}
	return Measurement{
		Strategy:       StrategyPeriodAverage,
		Frequency:      uint64(f),
		AvgPeriodTicks: avg,
	}, nil
}

// MeasureFrequencyCoarse is the quick edge-count-only variant used by
// macros: one gate window at 1:256, rescaled or refined with a 1:1 pass,
// no period averaging.
func (m *Manager) MeasureFrequencyCoarse(ctx context.Context) (uint32, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.state.mode == model.AuxModePWM {
		return 0, maskAny(ErrPWMActive)
	}

	count := m.Bridge.CountTimer()
	window := m.Bridge.WindowTimer()
	pinID := m.Pins.AuxPin()

	if err := window.Clear(); err != nil {
		return 0, maskAny(err)
	}
	if err := count.Clear(); err != nil {
		return 0, maskAny(err)
	}
	if err := m.Bridge.Pin(pinID).SetDirection(bridge.PinDirectionInput); err != nil {
		return 0, maskAny(err)
	}
	if err := count.UseExternalClock(pinID); err != nil {
		return 0, maskAny(err)
	}
	defer func() {
		count.UseInternalClock()
		window.Clear()
		count.Clear()
	}()

	if err := count.SetPrescale(bridge.Prescale256); err != nil {
		return 0, maskAny(err)
	}
	f, err := m.pollCounterWindow(ctx, count, window)
	if err != nil {
		return 0, maskAny(err)
	}
	if f > quickCountCeiling {
		f *= 256
	} else {
		if err := count.SetPrescale(bridge.Prescale1); err != nil {
			return 0, maskAny(err)
		}
		f, err = m.pollCounterWindow(ctx, count, window)
		if err != nil {
			return 0, maskAny(err)
		}
	}
	return f, nil
}

// pollCounterWindow counts external signal edges for one gate window and
// returns the accumulated count. It blocks for the window duration.
func (m *Manager) pollCounterWindow(ctx context.Context, count, window bridge.Timer) (uint32, error) {
	if err := count.SetPeriod(freeRunPeriod); err != nil {
		return 0, maskAny(err)
	}
	if err := count.ResetCounter(); err != nil {
		return 0, maskAny(err)
	}
	if err := window.ResetCounter(); err != nil {
		return 0, maskAny(err)
	}
	if err := window.SetPeriod(gateWindowTicks); err != nil {
		return 0, maskAny(err)
	}
	if err := window.Start(); err != nil {
		return 0, maskAny(err)
	}
	if err := count.Start(); err != nil {
		return 0, maskAny(err)
	}
	if err := window.WaitPeriodElapsed(ctx); err != nil {
		count.Stop()
		window.Stop()
		return 0, maskAny(err)
	}
	if err := count.Stop(); err != nil {
		return 0, maskAny(err)
	}
	if err := window.Stop(); err != nil {
		return 0, maskAny(err)
	}
	value, err := count.ReadCounter()
	if err != nil {
		return 0, maskAny(err)
	}
	return value, nil
}

// samplePeriodAverage times the interval between rising edges over the
// given number of samples and returns the average interval in instruction
// clock ticks. The two capture units latch the low and high word of the
// free running count timer on the same edge, forming a virtual 32-bit
// timestamp. This call has no timeout: a signal that stops during sampling
// stalls it until the context is canceled.
func (m *Manager) samplePeriodAverage(ctx context.Context, count uint16) (uint64, error) {
	pinID := m.Pins.AuxPin()
	low := m.Bridge.Capture(0)
	high := m.Bridge.Capture(1)
	timer := m.Bridge.CountTimer()

	// Free running tick source for the captures.
	if err := timer.UseInternalClock(); err != nil {
		return 0, maskAny(err)
	}
	if err := timer.SetPrescale(bridge.Prescale1); err != nil {
		return 0, maskAny(err)
	}
	if err := timer.ResetCounter(); err != nil {
		return 0, maskAny(err)
	}
	if err := timer.Start(); err != nil {
		return 0, maskAny(err)
	}

	if err := low.Arm(pinID); err != nil {
		return 0, maskAny(err)
	}
	if err := high.Arm(pinID); err != nil {
		return 0, maskAny(err)
	}
	defer func() {
		low.Disarm()
		high.Disarm()
		timer.Stop()
	}()

	// Flush stale captures buffered between arming and now.
	if err := flushCapture(low); err != nil {
		return 0, maskAny(err)
	}
	if err := flushCapture(high); err != nil {
		return 0, maskAny(err)
	}

	// Baseline edge.
	if err := low.WaitData(ctx); err != nil {
		return 0, maskAny(err)
	}
	prevLow, err := low.Read()
	if err != nil {
		return 0, maskAny(err)
	}
	prevHigh, err := high.Read()
	if err != nil {
		return 0, maskAny(err)
	}
	previous := uint32(prevHigh)<<16 | uint32(prevLow)

	var total uint64
	for index := uint16(0); index < count; index++ {
		// Wait for the next edge. No timeout.
		if err := low.WaitData(ctx); err != nil {
			return 0, maskAny(err)
		}
		lowWord, err := low.Read()
		if err != nil {
			return 0, maskAny(err)
		}
		highWord, err := high.Read()
		if err != nil {
			return 0, maskAny(err)
		}
		// Combining the words before subtracting handles the 16-bit low
		// word wraparound.
		current := uint32(highWord)<<16 | uint32(lowWord)
		total += uint64(current - previous)
		previous = current
	}
	return total / uint64(count), nil
}

// flushCapture drains any buffered captures from the given unit.
func flushCapture(unit bridge.CaptureUnit) error {
	for {
		buffered, err := unit.HasData()
		if err != nil {
			return maskAny(err)
		}
		if !buffered {
			return nil
		}
		if _, err := unit.Read(); err != nil {
			return maskAny(err)
		}
	}
}
