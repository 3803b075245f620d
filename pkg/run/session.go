// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/sirupsen/logrus"
)

// Settings maps a stream kind to its polling frequency in Hz (0 = disabled)
type Settings map[ditchpen.StreamKind]float64

// ParseSettings reads "kind=hz" tokens such as "pressure=10 accel=0.5"
func ParseSettings(args []string) (Settings, error) {
	settings := Settings{}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid polling setting %q (want kind=hz)", arg)
		}
		kind, err := ditchpen.ParseStreamKind(strings.ToLower(name))
		if err != nil {
			return nil, err
		}
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil || hz < 0 {
			return nil, fmt.Errorf("invalid frequency %q for %s", value, kind)
		}
		settings[kind] = hz
	}
	return settings, nil
}

// Sender transmits a command to the device
type Sender interface {
	Send(ctx context.Context, cmd ditchpen.Command) error
}

// Session owns a sequence of runs, at most one of them current, and the
// pollers that request readings at the configured frequencies.
type Session struct {
	mu sync.Mutex

	name            string
	creationDate    time.Time
	endTimestamp    *time.Time
	durationSeconds *float64
	settings        Settings
	runs            []*Run
	current         *Run

	now    func() time.Time
	loc    *time.Location
	log    *logrus.Entry
	sender Sender

	cancel  context.CancelFunc
	pollers sync.WaitGroup
}

// Option configures a Session
type Option func(*Session)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLocation sets the zone used by Summary
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// WithSender sets where polling commands are sent
func WithSender(sender Sender) Option {
	return func(s *Session) { s.sender = sender }
}

// NewSession creates a session. Polling does not start until Start is called.
func NewSession(name string, settings Settings, opts ...Option) *Session {
	s := &Session{
		name:     name,
		settings: Settings{},
		now:      time.Now,
		loc:      time.Local,
		log:      logrus.WithField("component", "run"),
	}
	for _, k := range ditchpen.StreamKinds {
		s.settings[k] = settings[k]
	}
	for _, opt := range opts {
		opt(s)
	}
	s.creationDate = s.now()
	return s
}

// Name returns the session name
func (s *Session) Name() string {
	return s.name
}

// Settings returns a copy of the polling configuration
func (s *Session) Settings() Settings {
	out := make(Settings, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// Ended reports whether EndSession has been called
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTimestamp != nil
}

// StartRun creates a run and makes it current. A previous current run is not
// ended: it stays in the session with no end time unless EndRun or EndSession
// is called while it is current.
func (s *Session) StartRun(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endTimestamp != nil {
		return ErrSessionEnded
	}
	r := newRun(name, s.now())
	s.runs = append(s.runs, r)
	s.current = r
	s.log.WithField("run", name).Info("run started")
	return nil
}

// CurrentRun returns the name of the current run, if any
func (s *Session) CurrentRun() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.Name, true
}

// ReceiveMessage parses a raw JSON message and adds it to the current run.
func (s *Session) ReceiveMessage(raw []byte) error {
	v, err := ditchpen.ParseJSON(raw)
	if err != nil {
		return &ditchpen.ParseError{Text: string(raw), Err: err}
	}
	obj, ok := v.(ditchpen.Object)
	if !ok {
		return &ditchpen.ParseError{Text: string(raw), Err: errors.New("message is not a JSON object")}
	}
	return s.receive(obj)
}

// Receive adds a decoded notification to the current run
func (s *Session) Receive(n *ditchpen.Notification) error {
	return s.receive(n.Payload())
}

func (s *Session) receive(obj ditchpen.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.log.Debug("no active run to receive the message")
		return ErrNoActiveRun
	}
	err := s.current.receive(obj, s.now())
	if err != nil && !errors.Is(err, ErrUnrouted) {
		s.log.WithError(err).WithField("run", s.current.Name).Debug("message dropped")
	}
	return err
}

// EndRun ends the current run and clears it
func (s *Session) EndRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.log.Info("no active run to end")
		return ErrNoActiveRun
	}
	if s.current.Active() {
		s.current.end(s.now())
	}
	s.log.WithField("run", s.current.Name).Info("run ended")
	s.current = nil
	return nil
}

// EndSession stamps the session end, ends every run still active and stops
// the pollers. Calling it again is a no-op that returns ErrSessionEnded.
func (s *Session) EndSession() error {
	s.mu.Lock()
	if s.endTimestamp != nil {
		s.mu.Unlock()
		s.log.WithField("session", s.name).Info("session already ended")
		return ErrSessionEnded
	}

	now := s.now()
	s.endTimestamp = &now
	d := now.Sub(s.creationDate).Seconds()
	s.durationSeconds = &d
	for _, r := range s.runs {
		if r.Active() {
			r.end(now)
		}
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.pollers.Wait()
	}
	s.log.WithField("session", s.name).Info("session ended")
	return nil
}

// Runs returns copies of the session's runs in start order
func (s *Session) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, len(s.runs))
	for i, r := range s.runs {
		out[i] = *r
	}
	return out
}

// Snapshot returns the exportable state of the session
func (s *Session) Snapshot() *Export {
	runs := s.Runs()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := make(map[string]float64, len(s.settings))
	for k, v := range s.settings {
		settings[string(k)] = v
	}
	return &Export{
		Name:            s.name,
		CreationDate:    s.creationDate,
		EndTimestamp:    s.endTimestamp,
		DurationSeconds: s.durationSeconds,
		Settings:        settings,
		Runs:            runs,
	}
}

// Summary renders the session and its runs as text
func (s *Session) Summary() string {
	e := s.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Session Name: %s\n", e.Name)
	fmt.Fprintf(&b, "Creation Date: %s\n", s.formatTime(e.CreationDate))
	fmt.Fprintf(&b, "End Timestamp: %s\n", s.formatOptionalTime(e.EndTimestamp, "Session not ended"))
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(e.DurationSeconds))

	for _, r := range e.Runs {
		fmt.Fprintf(&b, "Run Name: %s\n", r.Name)
		fmt.Fprintf(&b, "Creation Timestamp: %s\n", s.formatTime(r.CreationTimestamp))
		fmt.Fprintf(&b, "End Timestamp: %s\n", s.formatOptionalTime(r.EndTimestamp, "Run not ended"))
		fmt.Fprintf(&b, "Duration: %s\n", formatDuration(r.DurationSeconds))
		data, err := json.MarshalIndent(r.Data, "", "  ")
		if err != nil {
			fmt.Fprintf(&b, "Data: (unavailable: %v)\n", err)
			continue
		}
		fmt.Fprintf(&b, "Data: %s\n", data)
	}
	return b.String()
}

func (s *Session) formatTime(t time.Time) string {
	return t.In(s.loc).Format(time.RFC1123)
}

func (s *Session) formatOptionalTime(t *time.Time, missing string) string {
	if t == nil {
		return missing
	}
	return s.formatTime(*t)
}

func formatDuration(d *float64) string {
	if d == nil {
		return "Duration not calculated"
	}
	return ditchpen.FormatNumber(*d) + " seconds"
}
