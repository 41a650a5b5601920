// ABOUTME: Bubbletea model for the engine dashboard
// ABOUTME: Shows render load, block size, and scheduler counters live

package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the dashboard state.
type Model struct {
	engineName string
	sampleRate int

	// Engine snapshot
	currentSample int64
	blockSize     int
	avgLoad       float64
	peakLoad      float64
	underruns     int64
	adjustments   int64

	// Scheduler counters
	scheduled int64
	delivered int64
	missed    int64
	pending   int

	// Gain control
	gainPercent int

	control *Control

	showDebug bool
	dropped   int64

	width  int
	height int
}

// StatsMsg carries one engine snapshot into the dashboard.
type StatsMsg struct {
	CurrentSample int64
	BlockSize     int
	AverageLoad   float64
	PeakLoad      float64
	Underruns     int64
	Adjustments   int64
	Scheduled     int64
	Delivered     int64
	Missed        int64
	Pending       int
	Dropped       int64
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatsMsg:
		m.applyStats(msg)
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderLoad()
	s += m.renderScheduler()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	position := float64(m.currentSample) / float64(m.sampleRate)

	return fmt.Sprintf(`┌─ %s ─────────────────────────────────────┐
│ Position: %10.2fs   Block: %4d samples          │
├──────────────────────────────────────────────────────┤
`, m.engineName, position, m.blockSize)
}

func (m Model) renderLoad() string {
	avgBar := renderBar(int(m.avgLoad*100), 100, 20)
	peakBar := renderBar(int(m.peakLoad*100), 100, 20)

	return fmt.Sprintf("│ Load avg:  [%s] %5.1f%%          │\n"+
		"│ Load peak: [%s] %5.1f%%          │\n"+
		"│ Underruns: %-6d  Resizes: %-6d                 │\n",
		avgBar, m.avgLoad*100,
		peakBar, m.peakLoad*100,
		m.underruns, m.adjustments)
}

func (m Model) renderScheduler() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Events:  Scheduled: %-7d Delivered: %-7d      │
│          Missed: %-7d    Pending: %-7d         │
│ Gain: %3d%%                                           │
`, m.scheduled, m.delivered, m.missed, m.pending, m.gainPercent)
}

func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Current sample: %-12d                       │
│   Control drops:  %-12d                       │
`, m.currentSample, m.dropped)
}

func (m Model) renderHelp() string {
	return `│ ↑/↓:Gain  d:Debug  q:Quit                            │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.control.requestQuit()
		return m, tea.Quit
	case "up":
		m.gainPercent += 5
		if m.gainPercent > 200 {
			m.gainPercent = 200
		}
		m.control.sendGain(m.gainPercent)
	case "down":
		m.gainPercent -= 5
		if m.gainPercent < 0 {
			m.gainPercent = 0
		}
		m.control.sendGain(m.gainPercent)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) applyStats(msg StatsMsg) {
	m.currentSample = msg.CurrentSample
	m.blockSize = msg.BlockSize
	m.avgLoad = msg.AverageLoad
	m.peakLoad = msg.PeakLoad
	m.underruns = msg.Underruns
	m.adjustments = msg.Adjustments
	m.scheduled = msg.Scheduled
	m.delivered = msg.Delivered
	m.missed = msg.Missed
	m.pending = msg.Pending
	m.dropped = msg.Dropped
}

func renderBar(value, max, width int) string {
	if value > max {
		value = max
	}
	if value < 0 {
		value = 0
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}
