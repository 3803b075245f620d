// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"strings"
	"sync"
)

// DefaultConsoleLines bounds each console pane
const DefaultConsoleLines = 5000

// Console holds the terminal and information panes and fans each new line out
// to listeners (screen, log store mirror).
type Console struct {
	mu          sync.Mutex
	maxLines    int
	terminal    []string
	information []string

	onOutput      []func(string)
	onInformation []func(string)
	onClear       []func()
}

// NewConsole creates a console keeping at most maxLines per pane (0 = default)
func NewConsole(maxLines int) *Console {
	if maxLines <= 0 {
		maxLines = DefaultConsoleLines
	}
	return &Console{maxLines: maxLines}
}

// OnOutput registers a listener for terminal lines
func (c *Console) OnOutput(fn func(string)) {
	c.mu.Lock()
	c.onOutput = append(c.onOutput, fn)
	c.mu.Unlock()
}

// OnInformation registers a listener for information lines
func (c *Console) OnInformation(fn func(string)) {
	c.mu.Lock()
	c.onInformation = append(c.onInformation, fn)
	c.mu.Unlock()
}

// OnClear registers a listener called when the terminal pane is cleared
func (c *Console) OnClear(fn func()) {
	c.mu.Lock()
	c.onClear = append(c.onClear, fn)
	c.mu.Unlock()
}

// Output appends a line to the terminal pane
func (c *Console) Output(msg string) {
	c.mu.Lock()
	c.terminal = appendBounded(c.terminal, msg, c.maxLines)
	listeners := c.onOutput
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(msg)
	}
}

// Information appends a line to the information pane
func (c *Console) Information(msg string) {
	c.mu.Lock()
	c.information = appendBounded(c.information, msg, c.maxLines)
	listeners := c.onInformation
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(msg)
	}
}

// Clear empties the terminal pane
func (c *Console) Clear() {
	c.mu.Lock()
	c.terminal = nil
	listeners := c.onClear
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// TerminalText returns the terminal pane, one line per entry
func (c *Console) TerminalText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return joinLines(c.terminal)
}

// InformationText returns the information pane, one line per entry
func (c *Console) InformationText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return joinLines(c.information)
}

// TerminalLines returns a copy of the terminal pane
func (c *Console) TerminalLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.terminal...)
}

// InformationLines returns a copy of the information pane
func (c *Console) InformationLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.information...)
}

func appendBounded(lines []string, msg string, max int) []string {
	lines = append(lines, msg)
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
