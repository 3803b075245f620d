// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

// Package device owns the link to a ditchpen: connection lifecycle, command
// transmission and dispatch of inbound notifications to sinks and subscribers.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/sirupsen/logrus"
)

// State is the connection state of a Session
type State int

// Connection states
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DataPoint is one pressure sample for plotting
type DataPoint struct {
	Time  time.Time
	Value float64
}

// ExportPoint is one pressure sample with its wall clock time already formatted
type ExportPoint struct {
	Time  string
	Value float64
}

// DefaultInboundQueueSize is the number of notifications buffered between the
// link callback and the dispatch goroutine.
const DefaultInboundQueueSize = 256

// Session is the sole owner of a device link.
type Session struct {
	dialer Dialer
	debug  bool
	loc    *time.Location
	now    func() time.Time
	log    *logrus.Entry

	queueSize int

	output      func(string)
	information func(string)
	plot        func(DataPoint)

	mu         sync.Mutex
	state      State
	link       Link
	name       string
	feedActive bool
	stop       chan struct{}
	dispatchWg sync.WaitGroup

	bufMu        sync.RWMutex
	points       []DataPoint
	exportPoints []ExportPoint

	subMu       sync.RWMutex
	subscribers map[int]chan *ditchpen.Notification
	nextSubID   int

	statsMu sync.Mutex
	stats   *Statistics
}

// Option configures a Session
type Option func(*Session)

// WithDebug enables simulation mode: nothing is dialed and commands are only logged
func WithDebug(debug bool) Option {
	return func(s *Session) { s.debug = debug }
}

// WithOutput sets the sink for terminal messages (connection outcomes, sent commands)
func WithOutput(fn func(string)) Option {
	return func(s *Session) { s.output = fn }
}

// WithInformation sets the sink for formatted notification lines
func WithInformation(fn func(string)) Option {
	return func(s *Session) { s.information = fn }
}

// WithPlot sets the sink called after each pressure sample is buffered
func WithPlot(fn func(DataPoint)) Option {
	return func(s *Session) { s.plot = fn }
}

// WithLocation sets the zone used for formatted timestamps
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

// WithLogger sets the diagnostic logger
func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithInboundQueueSize sets the notification buffer size
func WithInboundQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// NewSession creates a disconnected session that dials through d.
// d may be nil in debug mode.
func NewSession(d Dialer, opts ...Option) *Session {
	s := &Session{
		dialer:      d,
		loc:         ditchpen.LoadLocation(ditchpen.DefaultTimeZone),
		now:         time.Now,
		log:         logrus.WithField("component", "device"),
		queueSize:   DefaultInboundQueueSize,
		subscribers: make(map[int]chan *ditchpen.Notification),
		stats:       NewStatistics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//////////////////////////////////////////////////////////////
// Connection lifecycle
//////////////////////////////////////////////////////////////

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Debug reports whether the session is in simulation mode
func (s *Session) Debug() bool {
	return s.debug
}

// DeviceName returns the connected device's name, or "" when disconnected
func (s *Session) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return ""
	}
	return s.name
}

// Connect dials the device and starts dispatching its notifications.
// Failures are reported to the output sink, leave the session Disconnected
// and are returned as *ConnectionError.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		msg := "already connected to " + s.name
		if s.state == StateConnecting {
			msg = "connection already in progress"
		}
		s.mu.Unlock()
		s.emitOutput(msg)
		return ErrAlreadyConnected
	}

	if s.debug {
		s.state = StateConnected
		s.name = "debug"
		s.mu.Unlock()
		s.emitOutput("debug: simulating device connection...")
		return nil
	}

	if s.dialer == nil {
		s.mu.Unlock()
		err := &ConnectionError{Op: "connect", Err: fmt.Errorf("no transport configured")}
		s.emitOutput("connection failed: " + err.Err.Error())
		return err
	}

	s.state = StateConnecting
	inbound := make(chan []byte, s.queueSize)
	stop := make(chan struct{})
	s.mu.Unlock()

	// Notifications can arrive before Dial returns
	s.dispatchWg.Add(1)
	go s.dispatch(inbound, stop)

	s.log.Debug("dialing device")
	link, err := s.dialer.Dial(ctx, func(data []byte) {
		s.enqueue(inbound, data)
	})
	if err != nil {
		close(stop)
		s.dispatchWg.Wait()

		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()

		s.log.WithError(err).Warn("connection failed")
		s.emitOutput("connection failed: " + err.Error())
		return &ConnectionError{Op: "connect", Err: err}
	}

	s.mu.Lock()
	s.link = link
	s.name = link.Name()
	s.stop = stop
	s.state = StateConnected
	s.mu.Unlock()

	s.log.WithField("device", link.Name()).Info("connected")
	s.emitOutput("connected to " + link.Name())
	return nil
}

// Disconnect closes the link. It is only valid while Connected; otherwise it
// reports that no device is connected and returns ErrNotConnected. A close
// error is reported and returned as *ConnectionError but the session still
// ends Disconnected.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		s.emitOutput("no bluetooth device is connected")
		return ErrNotConnected
	}

	link, name, stop := s.link, s.name, s.stop
	s.link = nil
	s.stop = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	var closeErr error
	if link != nil {
		closeErr = link.Close()
	}
	if stop != nil {
		close(stop)
		s.dispatchWg.Wait()
	}

	if closeErr != nil {
		s.log.WithError(closeErr).Warn("disconnection error")
		s.emitOutput("disconnection error: " + closeErr.Error())
		return &ConnectionError{Op: "disconnect", Err: closeErr}
	}

	s.log.WithField("device", name).Info("disconnected")
	s.emitOutput("disconnected from " + name)
	return nil
}

// DeviceInfo returns a description of the connected device's services and
// characteristics.
func (s *Session) DeviceInfo(ctx context.Context) (string, error) {
	s.mu.Lock()
	link, state, name := s.link, s.state, s.name
	s.mu.Unlock()

	if state != StateConnected {
		return "", ErrNotConnected
	}
	if d, ok := link.(Describer); ok {
		return d.Describe(ctx)
	}
	if link == nil {
		// simulated link
		return fmt.Sprintf("device name: %s\nconnected: true\n", name), nil
	}
	return "", ErrNoDescription
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// SetFeedActive suppresses the "sent command" echo while a periodic feed runs
func (s *Session) SetFeedActive(active bool) {
	s.mu.Lock()
	s.feedActive = active
	s.mu.Unlock()
}

// FeedActive reports whether a periodic feed is marked active
func (s *Session) FeedActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedActive
}

// Send transmits a built command
func (s *Session) Send(ctx context.Context, cmd ditchpen.Command) error {
	return s.SendCommand(ctx, cmd.Type, cmd.Args)
}

// SendCommand frames and transmits one manual command.
//
// In debug mode the frame is only echoed to the output sink. Otherwise the
// session must be Connected (ErrNotConnected) and a write failure is returned
// as *TransmitError. Concurrent calls are not ordered; callers that need
// ordering queue their commands.
func (s *Session) SendCommand(ctx context.Context, commandType uint8, args []byte) error {
	frame := ditchpen.EncodeCommand(commandType, args)

	s.mu.Lock()
	debug, link, state, feedActive := s.debug, s.link, s.state, s.feedActive
	s.mu.Unlock()

	if debug {
		s.emitOutput("debug: sending command " + ditchpen.FormatBytes(frame))
		return nil
	}
	if state != StateConnected || link == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := link.Write(frame); err != nil {
		s.withStats(func(st *Statistics) { st.SendFailures++ })
		s.log.WithError(err).WithField("type", ditchpen.FormatCommandType(commandType)).Warn("write failed")
		return &TransmitError{Err: err}
	}

	s.withStats(func(st *Statistics) {
		st.FramesSent++
		st.BytesSent += uint64(len(frame))
	})
	if !feedActive {
		s.emitOutput("sent command " + ditchpen.FormatBytes(frame))
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Inbound dispatch
//////////////////////////////////////////////////////////////

// enqueue copies data into the dispatch queue without blocking the transport.
func (s *Session) enqueue(inbound chan<- []byte, data []byte) {
	buf := append([]byte(nil), data...)
	select {
	case inbound <- buf:
	default:
		s.withStats(func(st *Statistics) { st.Dropped++ })
		s.log.Warn("inbound queue full, dropping notification")
	}
}

// dispatch is the single writer of the sample buffers for a live link
func (s *Session) dispatch(inbound <-chan []byte, stop <-chan struct{}) {
	defer s.dispatchWg.Done()
	for {
		select {
		case data := <-inbound:
			s.handle(data)
		case <-stop:
			for {
				select {
				case data := <-inbound:
					s.handle(data)
				default:
					return
				}
			}
		}
	}
}

// HandleNotification runs one notification through the decode path synchronously
func (s *Session) HandleNotification(data []byte) {
	s.handle(data)
}

func (s *Session) handle(data []byte) {
	s.withStats(func(st *Statistics) {
		st.Notifications++
		st.LastUpdateTime = s.now()
	})

	n, err := ditchpen.ParseNotification(data)
	if err != nil {
		s.withStats(func(st *Statistics) { st.ParseErrors++ })
		s.log.WithError(err).Warn("dropping notification")
		return
	}
	if n == nil {
		s.withStats(func(st *Statistics) { st.Ignored++ })
		return
	}

	s.publish(n)

	now := s.now()
	if n.IsPressure() {
		value, ok := n.PressureValue()
		if !ok {
			return
		}
		p := DataPoint{Time: now, Value: value}

		s.bufMu.Lock()
		s.points = append(s.points, p)
		s.exportPoints = append(s.exportPoints, ExportPoint{
			Time:  ditchpen.FormatTimestamp(now, s.loc),
			Value: value,
		})
		s.bufMu.Unlock()

		s.withStats(func(st *Statistics) { st.PressureSamples++ })
		s.emitPlot(p)
		return
	}

	line, ok := ditchpen.FormatInformation(n, ditchpen.FormatTimestamp(now, s.loc))
	if !ok {
		return
	}
	s.withStats(func(st *Statistics) { st.InformationLines++ })
	s.emitInformation(line)
}

// Subscribe returns a channel receiving every decoded notification. Delivery
// never blocks dispatch: a subscriber whose buffer is full misses notifications.
// cancel closes the channel.
func (s *Session) Subscribe(size int) (<-chan *ditchpen.Notification, func()) {
	ch := make(chan *ditchpen.Notification, size)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Session) publish(n *ditchpen.Notification) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

//////////////////////////////////////////////////////////////
// Buffers
//////////////////////////////////////////////////////////////

// Points returns a copy of the plotting buffer
func (s *Session) Points() []DataPoint {
	s.bufMu.RLock()
	defer s.bufMu.RUnlock()
	return append([]DataPoint(nil), s.points...)
}

// ExportPoints returns a copy of the export buffer
func (s *Session) ExportPoints() []ExportPoint {
	s.bufMu.RLock()
	defer s.bufMu.RUnlock()
	return append([]ExportPoint(nil), s.exportPoints...)
}

// ResetBuffers empties both sample buffers
func (s *Session) ResetBuffers() {
	s.bufMu.Lock()
	s.points = nil
	s.exportPoints = nil
	s.bufMu.Unlock()
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return *s.stats
}

func (s *Session) withStats(fn func(*Statistics)) {
	s.statsMu.Lock()
	fn(s.stats)
	s.statsMu.Unlock()
}

//////////////////////////////////////////////////////////////
// Sinks
//////////////////////////////////////////////////////////////

// recoverSink logs and drops a panic raised inside a sink
func (s *Session) recoverSink(name string) {
	if r := recover(); r != nil {
		s.log.WithField("sink", name).Errorf("sink panicked: %v", r)
	}
}

func (s *Session) emitOutput(msg string) {
	if s.output == nil {
		return
	}
	defer s.recoverSink("output")
	s.output(msg)
}

func (s *Session) emitInformation(msg string) {
	if s.information == nil {
		return
	}
	defer s.recoverSink("information")
	s.information(msg)
}

func (s *Session) emitPlot(p DataPoint) {
	if s.plot == nil {
		return
	}
	defer s.recoverSink("plot")
	s.plot(p)
}
