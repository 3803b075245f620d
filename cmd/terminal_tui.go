// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ditchlabs/ditchterm/internal/terminal"
	"github.com/ditchlabs/ditchterm/pkg/device"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	graphRefreshInterval = 200 * time.Millisecond
	maxInputHistory      = 200
	infoPaneRatio        = 2 // information pane gets 1/N of the width
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// terminalModel is the Bubble Tea model for the terminal TUI
type terminalModel struct {
	app   *terminalApp
	queue *terminal.Queue

	// Panes
	output      viewport.Model
	information viewport.Model
	input       textinput.Model

	// Input history, oldest first
	history    []string
	historyPos int

	// Live state refreshed on each tick
	graph    terminal.Graph
	hasGraph bool
	stats    device.Statistics
	state    device.State
	feedHz   int
	feedOn   bool
	pending  int

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type terminalTickMsg time.Time

type consoleChangedMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialTerminalModel(app *terminalApp, queue *terminal.Queue) terminalModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = `type "help" for commands`
	ti.CharLimit = 256
	ti.Focus()

	return terminalModel{
		app:         app,
		queue:       queue,
		output:      viewport.New(60, 10),
		information: viewport.New(30, 10),
		input:       ti,
		width:       80,
		height:      24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m terminalModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, terminalTickCmd())
}

func terminalTickCmd() tea.Cmd {
	return tea.Tick(graphRefreshInterval, func(t time.Time) tea.Msg {
		return terminalTickMsg(t)
	})
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refreshPanes()

	case consoleChangedMsg:
		m.refreshPanes()

	case terminalTickMsg:
		m.refreshStatus()
		cmds = append(cmds, terminalTickCmd())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *terminalModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+d":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		m.pushHistory(line)
		if line == "quit" || line == "exit" {
			m.quitting = true
			return m, tea.Quit
		}
		if err := m.queue.Enqueue(line); err != nil {
			m.app.console.Output(err.Error())
		}
		return m, nil

	case "up":
		m.recall(-1)
		return m, nil

	case "down":
		m.recall(1)
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *terminalModel) pushHistory(line string) {
	if n := len(m.history); n == 0 || m.history[n-1] != line {
		m.history = append(m.history, line)
		if len(m.history) > maxInputHistory {
			m.history = m.history[1:]
		}
	}
	m.historyPos = len(m.history)
}

func (m *terminalModel) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	pos := m.historyPos + delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(m.history) {
		m.historyPos = len(m.history)
		m.input.Reset()
		return
	}
	m.historyPos = pos
	m.input.SetValue(m.history[pos])
	m.input.CursorEnd()
}

func (m *terminalModel) resize() {
	// title, graph box, input, status bar and borders
	paneHeight := m.height - 12
	if paneHeight < 3 {
		paneHeight = 3
	}
	infoWidth := m.width / infoPaneRatio
	outWidth := m.width - infoWidth - 4

	m.output.Width = max(outWidth-4, 10)
	m.output.Height = paneHeight
	m.information.Width = max(infoWidth-4, 10)
	m.information.Height = paneHeight
	m.input.Width = max(m.width-6, 10)
}

func (m *terminalModel) refreshPanes() {
	m.output.SetContent(m.app.console.TerminalText())
	m.output.GotoBottom()
	m.information.SetContent(m.app.console.InformationText())
	m.information.GotoBottom()
}

func (m *terminalModel) refreshStatus() {
	m.graph, m.hasGraph = m.app.term.Graph(max(m.width-20, 10))
	m.stats = m.app.session.Stats()
	m.stats.CalculateRates()
	m.state = m.app.session.State()
	m.feedHz, m.feedOn = m.app.term.Feed().Active()
	m.pending = m.queue.Len()
}

func (m terminalModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("DITCH TERMINAL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Ctrl+C=quit PgUp/PgDn=scroll", m.app.connInfo)))
	s.WriteString("\n")

	// Terminal and information panes
	outBox := boxStyle.Render(statsLabelStyle.Render("TERMINAL") + "\n" + m.output.View())
	infoBox := boxStyle.Render(statsLabelStyle.Render("INFORMATION") + "\n" + m.information.View())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, outBox, infoBox))
	s.WriteString("\n")

	s.WriteString(m.renderGraph(statsLabelStyle, statsValueStyle, headerStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")
	s.WriteString(m.renderStatusBar(statsLabelStyle, statsValueStyle, warningStyle))
	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m terminalModel) renderGraph(statsLabelStyle, statsValueStyle, headerStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("PRESSURE"))
	content.WriteString(" ")
	if !m.hasGraph {
		content.WriteString(headerStyle.Render("no samples in the last 30 s"))
		return boxStyle.Width(max(m.width-2, 20)).Render(content.String())
	}
	content.WriteString(statsValueStyle.Render(m.graph.RealTime()))
	content.WriteString(headerStyle.Render(fmt.Sprintf("  min %.2f  max %.2f  n=%d", m.graph.Min, m.graph.Max, m.graph.Samples)))
	content.WriteString("\n")
	content.WriteString(statsValueStyle.Render(m.graph.Sparkline))
	return boxStyle.Width(max(m.width-2, 20)).Render(content.String())
}

func (m terminalModel) renderStatusBar(statsLabelStyle, statsValueStyle, warningStyle lipgloss.Style) string {
	state := statsValueStyle.Render(m.state.String())
	if m.state != device.StateConnected {
		state = warningStyle.Render(m.state.String())
	}
	if name := m.app.session.DeviceName(); name != "" && m.state == device.StateConnected {
		state += statsValueStyle.Render(" (" + name + ")")
	}

	feed := statsValueStyle.Render("off")
	if m.feedOn {
		feed = statsValueStyle.Render(fmt.Sprintf("%d Hz", m.feedHz))
	}

	return fmt.Sprintf(" %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Device:"), state,
		statsLabelStyle.Render("Feed:"), feed,
		statsLabelStyle.Render("Notifications:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Notifications)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msg/s", m.stats.NotificationRate)),
		statsLabelStyle.Render("Queued:"), statsValueStyle.Render(fmt.Sprintf("%d", m.pending)),
	)
}

//////////////////////////////////////////////////////////////
// Program
//////////////////////////////////////////////////////////////

func runTerminalTUI(app *terminalApp) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := terminal.NewQueue(app.term.Execute)
	queue.Start(ctx)
	defer queue.Close()

	m := initialTerminalModel(app, queue)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	notify := func(string) { p.Send(consoleChangedMsg{}) }
	app.console.OnOutput(notify)
	app.console.OnInformation(notify)
	app.console.OnClear(func() { p.Send(consoleChangedMsg{}) })

	_, err := p.Run()
	return err
}
