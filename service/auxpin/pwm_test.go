package auxpin

import (
	"testing"

	"github.com/probeworks/auxpin/model"
	"github.com/probeworks/auxpin/service/bridge"
)

func TestPrescalerChoiceTiers(t *testing.T) {
	tests := []struct {
		frequency uint32
		divisor   uint32
		prescale  bridge.Prescale
	}{
		{1, 62, bridge.Prescale256},
		{3, 62, bridge.Prescale256},
		{4, 250, bridge.Prescale64},
		{30, 250, bridge.Prescale64},
		{31, 2000, bridge.Prescale8},
		{244, 2000, bridge.Prescale8},
		{245, 16000, bridge.Prescale1},
		{3999, 16000, bridge.Prescale1},
	}
	for _, test := range tests {
		choice := prescalerChoiceFor(test.frequency)
		if choice.Divisor != test.divisor || choice.Prescale != test.prescale {
			t.Errorf("frequency %d: got divisor %d prescale 1:%d, want %d 1:%d",
				test.frequency, choice.Divisor, choice.Prescale.Ratio(), test.divisor, test.prescale.Ratio())
		}
	}
}

func TestProgramPWMRegisters(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	if err := mgr.ProgramPWM(ctx(t), 1000, 50); err != nil {
		t.Fatalf("ProgramPWM failed: %v", err)
	}

	timer := sim.CountTimerState()
	if !timer.Running {
		t.Error("count timer not running")
	}
	if timer.Prescale != bridge.Prescale1 {
		t.Errorf("expected prescale 1:1, got 1:%d", timer.Prescale.Ratio())
	}
	// 16000/1000 - 1
	if timer.Period != 15 {
		t.Errorf("expected period 15, got %d", timer.Period)
	}
	oc := sim.OutputCompareState()
	if !oc.Routed || oc.Pin != model.PinAux0 {
		t.Errorf("waveform not routed to aux0: %+v", oc)
	}
	// 15 * 50 / 100
	if oc.Compare != 7 {
		t.Errorf("expected on-time 7, got %d", oc.Compare)
	}
	if !oc.PWMEnabled {
		t.Error("PWM not enabled")
	}
	status := mgr.Status()
	if status.Mode != "pwm" || status.PWMFrequency != 1000 || status.PWMDutyCycle != 50 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestProgramPWMLowTier(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	if err := mgr.ProgramPWM(ctx(t), 10, 30); err != nil {
		t.Fatalf("ProgramPWM failed: %v", err)
	}
	timer := sim.CountTimerState()
	if timer.Prescale != bridge.Prescale64 {
		t.Errorf("expected prescale 1:64, got 1:%d", timer.Prescale.Ratio())
	}
	// 250/10 - 1
	if timer.Period != 24 {
		t.Errorf("expected period 24, got %d", timer.Period)
	}
	// 24 * 30 / 100
	if oc := sim.OutputCompareState(); oc.Compare != 7 {
		t.Errorf("expected on-time 7, got %d", oc.Compare)
	}
}

func TestProgramPWMValidation(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	if err := mgr.ProgramPWM(ctx(t), MaxPWMFrequency, 50); !model.IsValidation(err) {
		t.Errorf("expected validation error for frequency, got %v", err)
	}
	if err := mgr.ProgramPWM(ctx(t), 1000, MaxDutyCycle+1); !model.IsValidation(err) {
		t.Errorf("expected validation error for duty cycle, got %v", err)
	}
	if got := mgr.Mode(); got != model.AuxModeIO {
		t.Errorf("rejected program changed mode to %s", got)
	}
}

func TestDisablePWMReturnsToIO(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	if err := mgr.ProgramPWM(ctx(t), 1000, 50); err != nil {
		t.Fatalf("ProgramPWM failed: %v", err)
	}
	if err := mgr.ProgramPWM(ctx(t), 0, 0); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if got := mgr.Mode(); got != model.AuxModeIO {
		t.Errorf("expected mode io after disable, got %s", got)
	}
	if oc := sim.OutputCompareState(); oc.Routed || oc.PWMEnabled {
		t.Errorf("waveform hardware still active: %+v", oc)
	}
	if status := mgr.Status(); status.PWMFrequency != 0 {
		t.Errorf("frequency not cleared: %+v", status)
	}
}

func TestUpdateDutyCycleKeepsFrequency(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	if err := mgr.ProgramPWM(ctx(t), 1000, 50); err != nil {
		t.Fatalf("ProgramPWM failed: %v", err)
	}
	if err := mgr.UpdateDutyCycle(ctx(t), 20); err != nil {
		t.Fatalf("UpdateDutyCycle failed: %v", err)
	}
	// 15 * 20 / 100
	if oc := sim.OutputCompareState(); oc.Compare != 3 {
		t.Errorf("expected on-time 3, got %d", oc.Compare)
	}
	status := mgr.Status()
	if status.PWMFrequency != 1000 || status.PWMDutyCycle != 20 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestServoOnTime(t *testing.T) {
	tests := []struct {
		angle  uint32
		onTime uint32
	}{
		{0, 62},
		{90, 94},
		{180, 126},
	}
	for _, test := range tests {
		if got := servoOnTime(test.angle); got != test.onTime {
			t.Errorf("angle %d: got on-time %d, want %d", test.angle, got, test.onTime)
		}
	}
	// Wider angle never narrows the pulse.
	previous := servoOnTime(0)
	for angle := uint32(1); angle <= MaxServoAngle; angle++ {
		current := servoOnTime(angle)
		if current < previous {
			t.Fatalf("pulse narrowed from %d to %d at angle %d", previous, current, angle)
		}
		previous = current
	}
}

func TestProgramServoRegisters(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	if err := mgr.ProgramServo(ctx(t), 90); err != nil {
		t.Fatalf("ProgramServo failed: %v", err)
	}
	timer := sim.CountTimerState()
	if timer.Prescale != bridge.Prescale64 {
		t.Errorf("expected prescale 1:64, got 1:%d", timer.Prescale.Ratio())
	}
	if timer.Period != 1250 {
		t.Errorf("expected servo period 1250, got %d", timer.Period)
	}
	if !timer.Running {
		t.Error("count timer not running")
	}
	if oc := sim.OutputCompareState(); oc.Compare != 94 || !oc.PWMEnabled {
		t.Errorf("unexpected output compare state %+v", oc)
	}
	if got := mgr.Mode(); got != model.AuxModePWM {
		t.Errorf("expected mode pwm, got %s", got)
	}
}

func TestProgramServoValidation(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	if err := mgr.ProgramServo(ctx(t), MaxServoAngle+1); !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestServoKeepsRecordedPWMSettings(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	if err := mgr.ProgramPWM(ctx(t), 1000, 50); err != nil {
		t.Fatalf("ProgramPWM failed: %v", err)
	}
	if err := mgr.ProgramServo(ctx(t), 45); err != nil {
		t.Fatalf("ProgramServo failed: %v", err)
	}
	// The servo reuses the waveform hardware but does not overwrite the
	// recorded PWM settings.
	status := mgr.Status()
	if status.PWMFrequency != 1000 || status.PWMDutyCycle != 50 {
		t.Errorf("servo overwrote recorded PWM settings: %+v", status)
	}
}
