package auxpin

import (
	"context"
	"testing"

	"github.com/probeworks/auxpin/model"
)

// fakePrompter replays a scripted list of user entries.
type fakePrompter struct {
	entries []int
	prompts []string
}

func (f *fakePrompter) RequestNumber(ctx context.Context, prompt string, def, min, max int, acceptDecline bool) (int, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.entries) == 0 {
		return def, nil
	}
	value := f.entries[0]
	f.entries = f.entries[1:]
	return value, nil
}

// fakeConsole assembles printed fragments into finished lines.
type fakeConsole struct {
	lines   []string
	pending string
}

func (f *fakeConsole) Print(msg string) {
	f.pending += msg
}

func (f *fakeConsole) Println(msg string) {
	f.lines = append(f.lines, f.pending+msg)
	f.pending = ""
}

func (f *fakeConsole) lastLine() string {
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

func TestPWMCommandWithArguments(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	prompter := &fakePrompter{}
	console := &fakeConsole{}
	if err := mgr.RunPWMCommand(ctx(t), []int{1000, 50}, prompter, console); err != nil {
		t.Fatalf("RunPWMCommand failed: %v", err)
	}
	if len(prompter.prompts) != 0 {
		t.Errorf("valid arguments should not prompt, got %v", prompter.prompts)
	}
	if console.lastLine() != MsgPWMActive {
		t.Errorf("expected %q, got %q", MsgPWMActive, console.lastLine())
	}
	status := mgr.Status()
	if status.Mode != "pwm" || status.PWMFrequency != 1000 || status.PWMDutyCycle != 50 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestPWMCommandPromptsWhenMissingArguments(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	prompter := &fakePrompter{entries: []int{100, 25}}
	console := &fakeConsole{}
	if err := mgr.RunPWMCommand(ctx(t), nil, prompter, console); err != nil {
		t.Fatalf("RunPWMCommand failed: %v", err)
	}
	if len(prompter.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %v", prompter.prompts)
	}
	status := mgr.Status()
	if status.PWMFrequency != 100 || status.PWMDutyCycle != 25 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestPWMCommandTogglesOff(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	prompter := &fakePrompter{}
	console := &fakeConsole{}
	if err := mgr.RunPWMCommand(ctx(t), []int{1000, 50}, prompter, console); err != nil {
		t.Fatalf("RunPWMCommand failed: %v", err)
	}
	if err := mgr.RunPWMCommand(ctx(t), nil, prompter, console); err != nil {
		t.Fatalf("toggle off failed: %v", err)
	}
	if console.lastLine() != MsgPWMDisabled {
		t.Errorf("expected %q, got %q", MsgPWMDisabled, console.lastLine())
	}
	if len(prompter.prompts) != 0 {
		t.Errorf("toggle off should not prompt, got %v", prompter.prompts)
	}
	if got := mgr.Mode(); got != model.AuxModeIO {
		t.Errorf("expected mode io after toggle off, got %s", got)
	}
	if oc := sim.OutputCompareState(); oc.Routed {
		t.Error("waveform still routed after toggle off")
	}
}

func TestServoCommandWithArgument(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	prompter := &fakePrompter{}
	console := &fakeConsole{}
	if err := mgr.RunServoCommand(ctx(t), []int{90}, prompter, console); err != nil {
		t.Fatalf("RunServoCommand failed: %v", err)
	}
	if len(prompter.prompts) != 0 {
		t.Errorf("valid argument should not prompt, got %v", prompter.prompts)
	}
	if console.lastLine() != MsgServoActive {
		t.Errorf("expected %q, got %q", MsgServoActive, console.lastLine())
	}
	if oc := sim.OutputCompareState(); oc.Compare != 94 {
		t.Errorf("expected on-time 94, got %d", oc.Compare)
	}
}

func TestServoCommandEntryLoop(t *testing.T) {
	mgr, sim := newTestManager(t, 0)
	prompter := &fakePrompter{entries: []int{45, 120, -1}}
	console := &fakeConsole{}
	if err := mgr.RunServoCommand(ctx(t), nil, prompter, console); err != nil {
		t.Fatalf("RunServoCommand failed: %v", err)
	}
	// Initial prompt plus one re-prompt per programmed angle.
	if len(prompter.prompts) != 3 {
		t.Errorf("expected 3 prompts, got %v", prompter.prompts)
	}
	active := 0
	for _, line := range console.lines {
		if line == MsgServoActive {
			active++
		}
	}
	if active != 2 {
		t.Errorf("expected 2 programmed angles, got %d (%v)", active, console.lines)
	}
	// The last accepted angle stays programmed.
	// 1250*120/3500 + 62
	if oc := sim.OutputCompareState(); oc.Compare != 104 {
		t.Errorf("expected on-time 104, got %d", oc.Compare)
	}
}

func TestServoCommandStopsActivePWM(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	prompter := &fakePrompter{}
	console := &fakeConsole{}
	if err := mgr.RunPWMCommand(ctx(t), []int{1000, 50}, prompter, console); err != nil {
		t.Fatalf("RunPWMCommand failed: %v", err)
	}
	if err := mgr.RunServoCommand(ctx(t), nil, prompter, console); err != nil {
		t.Fatalf("RunServoCommand failed: %v", err)
	}
	if console.lastLine() != MsgPWMDisabled {
		t.Errorf("expected %q, got %q", MsgPWMDisabled, console.lastLine())
	}
	if got := mgr.Mode(); got != model.AuxModeIO {
		t.Errorf("expected mode io, got %s", got)
	}
}

func TestFrequencyCommandRefusedWhilePWM(t *testing.T) {
	mgr, _ := newTestManager(t, 1000)
	prompter := &fakePrompter{}
	console := &fakeConsole{}
	if err := mgr.RunPWMCommand(ctx(t), []int{1000, 50}, prompter, console); err != nil {
		t.Fatalf("RunPWMCommand failed: %v", err)
	}
	err := mgr.RunFrequencyCommand(ctx(t), console)
	if !IsPWMActive(err) {
		t.Fatalf("expected PWM active error, got %v", err)
	}
	if console.lastLine() != MsgFrequencyPWMConflict {
		t.Errorf("expected %q, got %q", MsgFrequencyPWMConflict, console.lastLine())
	}
}

func TestFrequencyCommandReportsAutorange(t *testing.T) {
	mgr, _ := newTestManager(t, 1000)
	console := &fakeConsole{}
	if err := mgr.RunFrequencyCommand(ctx(t), console); err != nil {
		t.Fatalf("RunFrequencyCommand failed: %v", err)
	}
	want := []string{
		MsgFrequencyPrefix + MsgAutorange,
		MsgAutorange,
		"1,000.00 Hz",
	}
	if len(console.lines) != len(want) {
		t.Fatalf("unexpected output %v", console.lines)
	}
	for i, line := range want {
		if console.lines[i] != line {
			t.Errorf("line %d: got %q, want %q", i, console.lines[i], line)
		}
	}
}

func TestFrequencyCommandTooLow(t *testing.T) {
	mgr, _ := newTestManager(t, 0)
	console := &fakeConsole{}
	if err := mgr.RunFrequencyCommand(ctx(t), console); err != nil {
		t.Fatalf("RunFrequencyCommand failed: %v", err)
	}
	if console.lastLine() != MsgFrequencyTooLow {
		t.Errorf("expected %q, got %q", MsgFrequencyTooLow, console.lastLine())
	}
}
