// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ditchlabs/ditchterm/pkg/run"
)

// recordingQueueSize buffers notifications between the device and the recorder
const recordingQueueSize = 256

func runSession(ctx context.Context, t *Terminal, name string, args []string) error {
	sub := strings.ToLower(args[0])
	switch sub {
	case "start":
		if len(args) < 2 {
			return invalid(name, "invalid session command, use: session start <name> [kind=hz ...]")
		}
		settings, err := run.ParseSettings(args[2:])
		if err != nil {
			return invalid(name, err.Error())
		}
		return t.startRecording(args[1], settings)

	case "end":
		s := t.stopRecording()
		if s == nil {
			t.console.Output("No active session to end.")
			return nil
		}
		t.console.Output(fmt.Sprintf("Session %s ended.", s.Name()))
		return nil

	case "print":
		s := t.Recording()
		if s == nil {
			t.console.Output("No session recorded.")
			return nil
		}
		for _, line := range strings.Split(strings.TrimRight(s.Summary(), "\n"), "\n") {
			t.console.Output(line)
		}
		return nil

	case "export":
		if len(args) != 2 {
			return invalid(name, "invalid session command, use: session export <file.json|file.cbor>")
		}
		s := t.Recording()
		if s == nil {
			t.console.Output("No session recorded.")
			return nil
		}
		format, err := run.FormatFromPath(args[1])
		if err != nil {
			return invalid(name, err.Error())
		}
		if _, err := writeExport(t.exportDir, args[1], func(w io.Writer) error {
			return s.Export(w, format)
		}); err != nil {
			return fmt.Errorf("failed to export session: %w", err)
		}
		t.console.Output(fmt.Sprintf("saved session %s to %s", s.Name(), args[1]))
		return nil
	}
	return invalid(name, "invalid session command, use: session start <name> [kind=hz ...] | end | print | export <file>")
}

func runRun(ctx context.Context, t *Terminal, name string, args []string) error {
	s := t.Recording()
	if s == nil || s.Ended() {
		return errors.New("no active session, use: session start <name>")
	}

	switch strings.ToLower(args[0]) {
	case "start":
		if len(args) != 2 {
			return invalid(name, "invalid run command, use: run start <name>")
		}
		if err := s.StartRun(args[1]); err != nil {
			return err
		}
		t.console.Output(fmt.Sprintf("Run %s started.", args[1]))
		return nil

	case "end":
		current, _ := s.CurrentRun()
		if err := s.EndRun(); errors.Is(err, run.ErrNoActiveRun) {
			t.console.Output("No active run to end.")
			return nil
		}
		t.console.Output(fmt.Sprintf("Run %s ended.", current))
		return nil
	}
	return invalid(name, "invalid run command, use: run start <name> | end")
}

// startRecording ends any previous session, then starts pollers and feeds
// every decoded notification into the new one.
func (t *Terminal) startRecording(name string, settings run.Settings) error {
	if prev := t.stopRecording(); prev != nil {
		t.console.Output(fmt.Sprintf("Session %s ended.", prev.Name()))
	}

	s := run.NewSession(name, settings,
		run.WithSender(t.dev),
		run.WithLocation(t.loc),
		run.WithClock(t.now),
		run.WithLogger(t.log.WithField("session", name)),
	)
	notifications, unsubscribe := t.dev.Subscribe(recordingQueueSize)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for n := range notifications {
			s.Receive(n)
		}
	}()

	if err := s.Start(t.ctx); err != nil {
		unsubscribe()
		<-done
		return err
	}

	t.mu.Lock()
	t.runs = s
	t.runsStop = unsubscribe
	t.runsDone = done
	t.mu.Unlock()

	t.console.Output(fmt.Sprintf("Session %s started.", name))
	return nil
}

// stopRecording ends the active session and returns it, or nil if none is
// active. The ended session stays available for print and export.
func (t *Terminal) stopRecording() *run.Session {
	t.mu.Lock()
	s, stop, done := t.runs, t.runsStop, t.runsDone
	t.runsStop = nil
	t.runsDone = nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	s.EndSession()
	stop()
	<-done
	return s
}
