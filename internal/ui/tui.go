// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the engine dashboard

package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Control carries user intents from the dashboard back to the host.
type Control struct {
	Gain chan float64  // master gain, 1.0 = unity
	Quit chan struct{} // closed-ish: one message on quit
}

// NewControl creates a control channel set.
func NewControl() *Control {
	return &Control{
		Gain: make(chan float64, 10),
		Quit: make(chan struct{}, 1),
	}
}

func (c *Control) sendGain(percent int) {
	if c == nil {
		return
	}
	select {
	case c.Gain <- float64(percent) / 100.0:
	default:
	}
}

func (c *Control) requestQuit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a dashboard model.
func NewModel(engineName string, sampleRate int, control *Control) Model {
	return Model{
		engineName:  engineName,
		sampleRate:  sampleRate,
		gainPercent: 100,
		control:     control,
	}
}

// Run builds the bubbletea program. The caller starts it and feeds it
// StatsMsg updates via Program.Send.
func Run(engineName string, sampleRate int, control *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(engineName, sampleRate, control), tea.WithAltScreen())
	return p, nil
}
