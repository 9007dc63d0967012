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

package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/rs/zerolog"

	"github.com/probeworks/auxpin/pkg/logging"
	"github.com/probeworks/auxpin/service/auxpin"
)

const historySize = 64

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Factory builds a terminal UI model per SSH session.
type Factory struct {
	Log     zerolog.Logger
	Aux     *auxpin.Manager
	Logs    *logging.RingWriter
	Version string
}

// Handler builds a fresh UI model for the given SSH session.
func (f *Factory) Handler(s ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, _ := s.Pty()
	r := Root{
		factory: f,
		ctx:     s.Context(),
		term:    pty.Term,
		width:   pty.Window.Width,
		height:  pty.Window.Height,
		session: newCommandSession(),
	}
	r.status = f.Aux.Status()
	return r, []tea.ProgramOption{tea.WithAltScreen()}
}

// promptRequest travels from a running interactive command to the UI.
type promptRequest struct {
	Prompt        string
	Default       int
	Min           int
	Max           int
	AcceptDecline bool
}

// consoleLine is a piece of command output. Lines are terminated
// explicitly so Print/Println keep their distinct meanings.
type consoleLine struct {
	Text    string
	NewLine bool
}

// commandSession bridges the blocking command layer to the UI loop.
type commandSession struct {
	requests  chan promptRequest
	responses chan int
	console   chan consoleLine
}

func newCommandSession() *commandSession {
	return &commandSession{
		requests:  make(chan promptRequest),
		responses: make(chan int),
		console:   make(chan consoleLine, 16),
	}
}

// RequestNumber implements auxpin.NumberPrompter.
func (cs *commandSession) RequestNumber(ctx context.Context, prompt string, def, min, max int, acceptDecline bool) (int, error) {
	select {
	case cs.requests <- promptRequest{
		Prompt:        prompt,
		Default:       def,
		Min:           min,
		Max:           max,
		AcceptDecline: acceptDecline,
	}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case value := <-cs.responses:
		return value, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Print implements auxpin.Console.
func (cs *commandSession) Print(msg string) {
	cs.console <- consoleLine{Text: msg}
}

// Println implements auxpin.Console.
func (cs *commandSession) Println(msg string) {
	cs.console <- consoleLine{Text: msg, NewLine: true}
}

type Root struct {
	factory *Factory
	ctx     context.Context
	session *commandSession

	term   string
	width  int
	height int

	status  auxpin.Status
	history []string
	partial string
	busy    bool

	prompt struct {
		active  bool
		request promptRequest
		input   textinput.Model
	}
	showLogs struct {
		active   bool
		viewPort viewport.Model
	}
}

var _ tea.Model = Root{}

type statusMsg auxpin.Status

type promptMsg promptRequest

type consoleMsg consoleLine

type commandDoneMsg struct {
	err error
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(
		doRefreshStatus(r.factory.Aux),
		waitForPrompt(r.session),
		waitForConsole(r.session),
	)
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case statusMsg:
		r.status = auxpin.Status(msg)
		return r, doRefreshStatus(r.factory.Aux)
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
	case promptMsg:
		r = r.openPrompt(promptRequest(msg))
	case consoleMsg:
		r = r.appendConsole(consoleLine(msg))
		cmds = append(cmds, waitForConsole(r.session))
	case commandDoneMsg:
		r.busy = false
		r.prompt.active = false
		if msg.err != nil {
			r = r.appendLine(errorStyle.Render(msg.err.Error()))
		}
	case tea.KeyMsg:
		return r.updateKey(msg)
	}

	if r.showLogs.active {
		var cmd tea.Cmd
		r.showLogs.viewPort, cmd = r.showLogs.viewPort.Update(msg)
		cmds = append(cmds, cmd)
	}

	return r, tea.Batch(cmds...)
}

func (r Root) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return r, tea.Quit
	}

	if r.prompt.active {
		return r.updatePromptKey(msg)
	}
	if r.showLogs.active {
		switch msg.String() {
		case "q", "esc":
			r.showLogs.active = false
			return r, nil
		}
		var cmd tea.Cmd
		r.showLogs.viewPort, cmd = r.showLogs.viewPort.Update(msg)
		return r, cmd
	}
	if r.busy {
		// A command is running; only the prompt takes input.
		return r, nil
	}

	mgr := r.factory.Aux
	switch msg.String() {
	case "q":
		return r, tea.Quit
	case "A":
		if err := mgr.SetHigh(); err != nil {
			return r.appendLine(errorStyle.Render(err.Error())), nil
		}
		return r.appendLine(auxpin.MsgAuxHigh), nil
	case "a":
		if err := mgr.SetLow(); err != nil {
			return r.appendLine(errorStyle.Render(err.Error())), nil
		}
		return r.appendLine(auxpin.MsgAuxLow), nil
	case "@":
		if err := mgr.SetHighImpedance(); err != nil {
			return r.appendLine(errorStyle.Render(err.Error())), nil
		}
		value, err := mgr.Read()
		if err != nil {
			return r.appendLine(errorStyle.Render(err.Error())), nil
		}
		return r.appendLine(fmt.Sprintf("%s %d", auxpin.MsgAuxInput, boolToInt(value))), nil
	case "g":
		return r.startCommand(func(ctx context.Context) error {
			return mgr.RunPWMCommand(ctx, nil, r.session, r.session)
		})
	case "S":
		return r.startCommand(func(ctx context.Context) error {
			return mgr.RunServoCommand(ctx, nil, r.session, r.session)
		})
	case "f":
		return r.startCommand(func(ctx context.Context) error {
			return mgr.RunFrequencyCommand(ctx, r.session)
		})
	case "c":
		return r.startCommand(func(ctx context.Context) error {
			freq, err := mgr.MeasureFrequencyCoarse(ctx)
			if err != nil {
				return err
			}
			r.session.Println(fmt.Sprintf("%s%d Hz (coarse)", auxpin.MsgFrequencyPrefix, freq))
			return nil
		})
	case "l":
		r = r.openLogs()
	}
	return r, nil
}

func (r Root) updatePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		req := r.prompt.request
		raw := strings.TrimSpace(r.prompt.input.Value())
		value := req.Default
		if raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				r = r.appendLine(errorStyle.Render("not a number, try again"))
				r.prompt.input.SetValue("")
				return r, nil
			}
			value = parsed
		}
		if value < req.Min || value > req.Max {
			if !(req.AcceptDecline && value < 0) {
				r = r.appendLine(errorStyle.Render(
					fmt.Sprintf("value out of range (%d..%d), try again", req.Min, req.Max)))
				r.prompt.input.SetValue("")
				return r, nil
			}
		}
		r = r.appendLine(fmt.Sprintf("%s %d", req.Prompt, value))
		r.prompt.active = false
		session := r.session
		return r, tea.Batch(
			func() tea.Msg {
				session.responses <- value
				return nil
			},
			waitForPrompt(session),
		)
	}
	var cmd tea.Cmd
	r.prompt.input, cmd = r.prompt.input.Update(msg)
	return r, cmd
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	s := r.headerView()
	if r.showLogs.active {
		return s + r.showLogs.viewPort.View()
	}
	for _, line := range r.historyTail() {
		s += line + "\n"
	}
	if r.partial != "" {
		s += r.partial + "\n"
	}
	if r.prompt.active {
		s += r.prompt.request.Prompt + " " + r.prompt.input.View() + "\n"
		return s
	}
	if r.busy {
		s += statusStyle.Render("working...") + "\n"
		return s
	}
	s += `
a - AUX low         A - AUX high      @ - AUX input, read
g - PWM generator   S - servo         f - measure frequency
c - coarse count    l - view logs     q - disconnect
`
	return s
}

func (r Root) headerView() string {
	title := headerStyle.Render("AUX probe " + r.factory.Version)
	status := statusStyle.Render(fmt.Sprintf("pin=%s mode=%s pwm=%dHz/%d%%",
		r.status.Pin, r.status.Mode, r.status.PWMFrequency, r.status.PWMDutyCycle))
	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", status) + "\n\n"
}

func (r Root) startCommand(run func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	r.busy = true
	ctx := r.ctx
	return r, func() tea.Msg {
		return commandDoneMsg{err: run(ctx)}
	}
}

func (r Root) openPrompt(req promptRequest) Root {
	input := textinput.New()
	input.Placeholder = strconv.Itoa(req.Default)
	input.CharLimit = 8
	input.Width = 10
	input.Focus()
	r.prompt.active = true
	r.prompt.request = req
	r.prompt.input = input
	return r
}

func (r Root) openLogs() Root {
	headerHeight := lipgloss.Height(r.headerView())
	vp := viewport.New(r.width, r.height-headerHeight)
	vp.YPosition = headerHeight
	var content strings.Builder
	if r.factory.Logs != nil {
		for _, entry := range r.factory.Logs.Tail(0) {
			content.WriteString(entry.Message)
			content.WriteString("\n")
		}
	}
	vp.SetContent(content.String())
	vp.GotoBottom()
	r.showLogs.viewPort = vp
	r.showLogs.active = true
	return r
}

func (r Root) appendConsole(line consoleLine) Root {
	if line.NewLine {
		r = r.appendLine(r.partial + line.Text)
		r.partial = ""
		return r
	}
	r.partial += line.Text
	return r
}

func (r Root) appendLine(line string) Root {
	r.history = append(r.history, line)
	if len(r.history) > historySize {
		r.history = r.history[len(r.history)-historySize:]
	}
	return r
}

func (r Root) historyTail() []string {
	max := r.height - 10
	if max < 4 {
		max = 4
	}
	if len(r.history) <= max {
		return r.history
	}
	return r.history[len(r.history)-max:]
}

func waitForPrompt(cs *commandSession) tea.Cmd {
	return func() tea.Msg {
		return promptMsg(<-cs.requests)
	}
}

func waitForConsole(cs *commandSession) tea.Cmd {
	return func() tea.Msg {
		return consoleMsg(<-cs.console)
	}
}

func doRefreshStatus(mgr *auxpin.Manager) tea.Cmd {
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		return statusMsg(mgr.Status())
	})
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
