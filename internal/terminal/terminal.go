// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

// Package terminal interprets ditch terminal command lines against a device
// session, with the timers, exports and run recording they drive.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/ditchlabs/ditchterm/pkg/run"
	"github.com/sirupsen/logrus"
)

// Device is the part of a device session the terminal drives
type Device interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, cmd ditchpen.Command) error
	DeviceInfo(ctx context.Context) (string, error)
	DeviceName() string
	SetFeedActive(active bool)
	ExportPoints() []device.ExportPoint
	Points() []device.DataPoint
	Subscribe(size int) (<-chan *ditchpen.Notification, func())
	Stats() device.Statistics
}

// CommandObserver is told about every executed command
type CommandObserver interface {
	ObserveCommand(name string, err error)
}

// Terminal executes command lines. Execute may be called from one goroutine
// at a time; the Queue provides that ordering for interactive use.
type Terminal struct {
	dev      Device
	console  *Console
	log      *logrus.Entry
	loc      *time.Location
	now      func() time.Time
	observer CommandObserver

	exportDir string
	feedFile  string

	ctx    context.Context
	cancel context.CancelFunc

	feed *Feed
	leds *LEDs

	mu       sync.Mutex
	runs     *run.Session
	runsStop func()
	runsDone chan struct{}
}

// Option configures a Terminal
type Option func(*Terminal)

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) Option {
	return func(t *Terminal) { t.log = log }
}

// WithLocation sets the zone used for run summaries
func WithLocation(loc *time.Location) Option {
	return func(t *Terminal) { t.loc = loc }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Terminal) { t.now = now }
}

// WithExportDir sets where save, stop and session export write files
func WithExportDir(dir string) Option {
	return func(t *Terminal) { t.exportDir = dir }
}

// WithFeedFile sets the CSV written when a feed stops
func WithFeedFile(name string) Option {
	return func(t *Terminal) { t.feedFile = name }
}

// WithObserver sets a command observer
func WithObserver(o CommandObserver) Option {
	return func(t *Terminal) { t.observer = o }
}

// WithFlashHalfPeriod overrides the LED flash timing
func WithFlashHalfPeriod(d time.Duration) Option {
	return func(t *Terminal) { t.leds.halfFlash = d }
}

// New creates a terminal for dev writing to console
func New(dev Device, console *Console, opts ...Option) *Terminal {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Terminal{
		dev:       dev,
		console:   console,
		log:       logrus.WithField("component", "terminal"),
		loc:       time.Local,
		now:       time.Now,
		exportDir: ".",
		feedFile:  "feedData.csv",
		ctx:       ctx,
		cancel:    cancel,
	}
	t.feed = NewFeed(dev.Send, t.log)
	t.leds = NewLEDs(ctx, dev.Send, t.log)
	for _, opt := range opts {
		opt(t)
	}
	t.feed.log = t.log
	t.leds.log = t.log
	return t
}

// Console returns the terminal's console
func (t *Terminal) Console() *Console {
	return t.console
}

// Execute echoes and runs one command line. Every failure is also written to
// the console; the error is returned for callers that track outcomes.
func (t *Terminal) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	t.console.Output("> " + line)
	if line == "" {
		return nil
	}

	parts := strings.Fields(line)
	name := strings.ToLower(parts[0])

	cmd, ok := lookupCommand(name)
	if !ok {
		err := fmt.Errorf(`%s is not a command, type "help" for the list of valid commands`, line)
		t.console.Output(err.Error())
		t.observe("unknown", err)
		return err
	}

	var err error
	if len(parts)-1 < cmd.MinArgs || (cmd.MaxArgs >= 0 && len(parts)-1 > cmd.MaxArgs) {
		err = invalid(name, cmd.invalidMessage(name))
	} else {
		err = cmd.Handler(ctx, t, name, parts[1:])
	}
	if err != nil {
		t.report(err)
	}
	t.observe(name, err)
	return err
}

func (t *Terminal) report(err error) {
	var reported *reportedError
	if errors.As(err, &reported) {
		return
	}
	t.console.Output(err.Error())
}

func (t *Terminal) observe(name string, err error) {
	if t.observer != nil {
		t.observer.ObserveCommand(name, err)
	}
}

// Close stops the feed, LED patterns and any recording session
func (t *Terminal) Close() {
	t.feed.Stop()
	t.dev.SetFeedActive(false)
	t.stopRecording()
	t.cancel()
	t.leds.Close()
}

// Feed returns the pressure feed
func (t *Terminal) Feed() *Feed {
	return t.feed
}

// LEDs returns the pattern driver
func (t *Terminal) LEDs() *LEDs {
	return t.leds
}

// Graph renders the recent pressure samples at the given width
func (t *Terminal) Graph(width int) (Graph, bool) {
	return RenderGraph(t.dev.Points(), t.now(), GraphWindow, width)
}

// Recording returns the latest run session, if any. It may have ended.
func (t *Terminal) Recording() *run.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}
