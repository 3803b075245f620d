// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Test doubles
// ============================================================

// mockLink records writes and lets tests fail Write and Close
type mockLink struct {
	name     string
	writeErr error
	closeErr error

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (l *mockLink) Name() string { return l.name }

func (l *mockLink) Write(p []byte) (int, error) {
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (l *mockLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return l.closeErr
}

func (l *mockLink) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.writes...)
}

// mockDescriber adds Describe to mockLink
type mockDescriber struct {
	*mockLink
}

func (d mockDescriber) Describe(ctx context.Context) (string, error) {
	return "service: " + UARTServiceUUID + "\n", nil
}

// mockDialer hands out a fixed link and keeps the notify callback
type mockDialer struct {
	link Link
	err  error

	mu     sync.Mutex
	notify NotifyFunc
	dials  int
}

func (d *mockDialer) Dial(ctx context.Context, notify NotifyFunc) (Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	d.notify = notify
	return d.link, nil
}

func (d *mockDialer) Push(text string) {
	d.mu.Lock()
	notify := d.notify
	d.mu.Unlock()
	notify([]byte(text))
}

// recorder collects sink output
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Add(s string) {
	r.mu.Lock()
	r.lines = append(r.lines, s)
	r.mu.Unlock()
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) Last() string {
	lines := r.Lines()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

var fixedTime = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

func newTestSession(d Dialer, out, info *recorder, opts ...Option) *Session {
	base := []Option{
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return fixedTime }),
		WithLocation(time.UTC),
	}
	if out != nil {
		base = append(base, WithOutput(out.Add))
	}
	if info != nil {
		base = append(base, WithInformation(info.Add))
	}
	return NewSession(d, append(base, opts...)...)
}

// ============================================================
// Connection lifecycle
// ============================================================

func TestSession_ConnectDisconnect(t *testing.T) {
	link := &mockLink{name: "DITCH-01"}
	out := &recorder{}
	s := newTestSession(&mockDialer{link: link}, out, nil)

	if s.State() != StateDisconnected {
		t.Fatalf("initial state = %v", s.State())
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("state after Connect = %v", s.State())
	}
	if out.Last() != "connected to DITCH-01" {
		t.Errorf("output = %q", out.Last())
	}
	if s.DeviceName() != "DITCH-01" {
		t.Errorf("DeviceName() = %q", s.DeviceName())
	}

	if err := s.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state after Disconnect = %v", s.State())
	}
	if out.Last() != "disconnected from DITCH-01" {
		t.Errorf("output = %q", out.Last())
	}
	if !link.closed {
		t.Error("link was not closed")
	}
	if s.DeviceName() != "" {
		t.Errorf("DeviceName() after disconnect = %q", s.DeviceName())
	}
}

func TestSession_ConnectFailure(t *testing.T) {
	out := &recorder{}
	s := newTestSession(&mockDialer{err: errors.New("adapter off")}, out, nil)

	err := s.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want *ConnectionError", err)
	}
	if connErr.Op != "connect" {
		t.Errorf("Op = %q", connErr.Op)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", s.State())
	}
	if out.Last() != "connection failed: adapter off" {
		t.Errorf("output = %q", out.Last())
	}
}

func TestSession_ConnectRetryAfterFailure(t *testing.T) {
	d := &mockDialer{err: errors.New("timeout")}
	s := newTestSession(d, nil, nil)

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected first Connect to fail")
	}
	d.err = nil
	d.link = &mockLink{name: "DITCH-02"}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("retry Connect() error = %v", err)
	}
	if d.dials != 2 {
		t.Errorf("dials = %d, want 2", d.dials)
	}
}

func TestSession_ConnectTwice(t *testing.T) {
	out := &recorder{}
	s := newTestSession(&mockDialer{link: &mockLink{name: "DITCH-01"}}, out, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
	if out.Last() != "already connected to DITCH-01" {
		t.Errorf("output = %q", out.Last())
	}
}

func TestSession_DisconnectWhenDisconnected(t *testing.T) {
	out := &recorder{}
	s := newTestSession(&mockDialer{}, out, nil)

	if err := s.Disconnect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Disconnect() error = %v, want ErrNotConnected", err)
	}
	if out.Last() != "no bluetooth device is connected" {
		t.Errorf("output = %q", out.Last())
	}
}

func TestSession_DisconnectError(t *testing.T) {
	out := &recorder{}
	link := &mockLink{name: "DITCH-01", closeErr: errors.New("gatt busy")}
	s := newTestSession(&mockDialer{link: link}, out, nil)

	s.Connect(context.Background())
	err := s.Disconnect(context.Background())

	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Op != "disconnect" {
		t.Fatalf("Disconnect() error = %v, want disconnect *ConnectionError", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", s.State())
	}
	if out.Last() != "disconnection error: gatt busy" {
		t.Errorf("output = %q", out.Last())
	}
}

func TestSession_NoDialer(t *testing.T) {
	s := newTestSession(nil, nil, nil)
	var connErr *ConnectionError
	if err := s.Connect(context.Background()); !errors.As(err, &connErr) {
		t.Errorf("Connect() error = %v, want *ConnectionError", err)
	}
}

// ============================================================
// Commands
// ============================================================

func TestSession_SendCommand(t *testing.T) {
	link := &mockLink{name: "DITCH-01"}
	out := &recorder{}
	s := newTestSession(&mockDialer{link: link}, out, nil)
	s.Connect(context.Background())

	if err := s.SendCommand(context.Background(), ditchpen.CmdPressureValues, nil); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	want := ditchpen.EncodeCommand(ditchpen.CmdPressureValues, nil)
	writes := link.Writes()
	if len(writes) != 1 || !bytes.Equal(writes[0], want) {
		t.Fatalf("writes = %v, want one frame % X", writes, want)
	}
	if out.Last() != "sent command "+ditchpen.FormatBytes(want) {
		t.Errorf("output = %q", out.Last())
	}

	stats := s.Stats()
	if stats.FramesSent != 1 || stats.BytesSent != uint64(len(want)) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSession_SendCommandFeedActive(t *testing.T) {
	link := &mockLink{name: "DITCH-01"}
	out := &recorder{}
	s := newTestSession(&mockDialer{link: link}, out, nil)
	s.Connect(context.Background())
	before := len(out.Lines())

	s.SetFeedActive(true)
	if err := s.SendCommand(context.Background(), ditchpen.CmdPressureValues, nil); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if len(out.Lines()) != before {
		t.Errorf("feed-active send echoed %q", out.Last())
	}
	if len(link.Writes()) != 1 {
		t.Errorf("writes = %d, want 1", len(link.Writes()))
	}
}

func TestSession_SendCommandNotConnected(t *testing.T) {
	s := newTestSession(&mockDialer{}, nil, nil)
	err := s.SendCommand(context.Background(), ditchpen.CmdLED1, []byte{0, 0, 0, 0})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendCommand() error = %v, want ErrNotConnected", err)
	}
}

func TestSession_SendCommandWriteError(t *testing.T) {
	link := &mockLink{name: "DITCH-01", writeErr: errors.New("gatt write failed")}
	s := newTestSession(&mockDialer{link: link}, nil, nil)
	s.Connect(context.Background())

	err := s.Send(context.Background(), ditchpen.ReadNFCCommand())
	var txErr *TransmitError
	if !errors.As(err, &txErr) {
		t.Fatalf("Send() error = %v, want *TransmitError", err)
	}
	if s.Stats().SendFailures != 1 {
		t.Errorf("SendFailures = %d", s.Stats().SendFailures)
	}
}

func TestSession_DebugMode(t *testing.T) {
	out := &recorder{}
	s := newTestSession(nil, out, nil, WithDebug(true))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if out.Last() != "debug: simulating device connection..." {
		t.Errorf("output = %q", out.Last())
	}

	if err := s.SendCommand(context.Background(), ditchpen.CmdPressureValues, nil); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	want := "debug: sending command 244 63 242 31 14 0 0 0 0 0 0 0 1 6 13 59 204 177 175 251 207 253"
	if out.Last() != want {
		t.Errorf("output = %q, want %q", out.Last(), want)
	}

	info, err := s.DeviceInfo(context.Background())
	if err != nil || !strings.Contains(info, "device name: debug") {
		t.Errorf("DeviceInfo() = %q, %v", info, err)
	}

	if err := s.Disconnect(context.Background()); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
}

func TestSession_DebugSendWhileDisconnected(t *testing.T) {
	out := &recorder{}
	s := newTestSession(nil, out, nil, WithDebug(true))
	if err := s.SendCommand(context.Background(), ditchpen.CmdRTCValue, nil); err != nil {
		t.Errorf("debug SendCommand() error = %v", err)
	}
	if !strings.HasPrefix(out.Last(), "debug: sending command ") {
		t.Errorf("output = %q", out.Last())
	}
}

func TestSession_DeviceInfo(t *testing.T) {
	plain := &mockLink{name: "DITCH-01"}
	s := newTestSession(&mockDialer{link: plain}, nil, nil)

	if _, err := s.DeviceInfo(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("DeviceInfo() disconnected error = %v", err)
	}
	s.Connect(context.Background())
	if _, err := s.DeviceInfo(context.Background()); !errors.Is(err, ErrNoDescription) {
		t.Errorf("DeviceInfo() error = %v, want ErrNoDescription", err)
	}
	s.Disconnect(context.Background())

	described := mockDescriber{&mockLink{name: "DITCH-02"}}
	s = newTestSession(&mockDialer{link: described}, nil, nil)
	s.Connect(context.Background())
	info, err := s.DeviceInfo(context.Background())
	if err != nil || !strings.Contains(info, UARTServiceUUID) {
		t.Errorf("DeviceInfo() = %q, %v", info, err)
	}
}

// ============================================================
// Notification handling
// ============================================================

func TestSession_PressureNotification(t *testing.T) {
	var plotted []DataPoint
	s := newTestSession(nil, nil, nil, WithPlot(func(p DataPoint) { plotted = append(plotted, p) }))

	s.HandleNotification([]byte(`{"PROC":"Pressures","Result":[42.5]}"PROC"`))

	points := s.Points()
	exports := s.ExportPoints()
	if len(points) != 1 || len(exports) != 1 {
		t.Fatalf("buffers = %d/%d, want 1/1", len(points), len(exports))
	}
	if points[0].Value != 42.5 || !points[0].Time.Equal(fixedTime) {
		t.Errorf("point = %+v", points[0])
	}
	if exports[0] != (ExportPoint{Time: "15:04:05", Value: 42.5}) {
		t.Errorf("export point = %+v", exports[0])
	}
	if len(plotted) != 1 {
		t.Errorf("plot sink called %d times, want 1", len(plotted))
	}
}

func TestSession_PressureFirstValueOnly(t *testing.T) {
	s := newTestSession(nil, nil, nil)
	s.HandleNotification([]byte(`{"PROC":"Pressures","Result":[1,2,3]}`))

	points := s.Points()
	if len(points) != 1 || points[0].Value != 1 {
		t.Errorf("points = %+v, want one point with value 1", points)
	}
}

func TestSession_IgnoresWithoutMarker(t *testing.T) {
	info := &recorder{}
	s := newTestSession(nil, nil, info)

	s.HandleNotification([]byte(`{"Result":[42.5],"Pressures":true}`))

	if len(s.Points()) != 0 || len(s.ExportPoints()) != 0 || len(info.Lines()) != 0 {
		t.Error("notification without PROC marker was processed")
	}
	if s.Stats().Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", s.Stats().Ignored)
	}
}

func TestSession_InformationNotification(t *testing.T) {
	info := &recorder{}
	s := newTestSession(nil, nil, info)

	s.HandleNotification([]byte(`{"PROC":"Accel","Result":[0.5,-1,9.8]}`))

	want := "(15:04:05) [Accel]: Data: 0.5, -1, 9.8 "
	if info.Last() != want {
		t.Errorf("information = %q, want %q", info.Last(), want)
	}
	if len(s.Points()) != 0 {
		t.Error("generic notification added a pressure point")
	}
}

func TestSession_ParseErrorDropped(t *testing.T) {
	info := &recorder{}
	out := &recorder{}
	s := newTestSession(nil, out, info)

	s.HandleNotification([]byte(`{"PROC":"Pressures","Result":[1,}`))

	if len(info.Lines()) != 0 || len(out.Lines()) != 0 || len(s.Points()) != 0 {
		t.Error("malformed notification reached a sink")
	}
	if s.Stats().ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", s.Stats().ParseErrors)
	}
}

func TestSession_PanickingSink(t *testing.T) {
	s := newTestSession(nil, nil, nil,
		WithInformation(func(string) { panic("sink bug") }),
		WithPlot(func(DataPoint) { panic("plot bug") }),
	)

	s.HandleNotification([]byte(`{"PROC":"RTC","Result":12}`))
	s.HandleNotification([]byte(`{"PROC":"Pressures","Result":[3]}`))

	if len(s.Points()) != 1 {
		t.Errorf("points = %d, want 1", len(s.Points()))
	}
}

func TestSession_ResetBuffers(t *testing.T) {
	s := newTestSession(nil, nil, nil)
	for i := 0; i < 3; i++ {
		s.HandleNotification([]byte(fmt.Sprintf(`{"PROC":"Pressures","Result":[%d]}`, i)))
	}
	if len(s.Points()) != 3 {
		t.Fatalf("points = %d, want 3", len(s.Points()))
	}
	s.ResetBuffers()
	if len(s.Points()) != 0 || len(s.ExportPoints()) != 0 {
		t.Error("buffers not empty after ResetBuffers")
	}
}

func TestSession_Subscribe(t *testing.T) {
	s := newTestSession(nil, nil, nil)
	ch, cancel := s.Subscribe(4)

	s.HandleNotification([]byte(`{"PROC":"Digital","Result":[{"D0":1}]}`))
	s.HandleNotification([]byte(`no marker`))

	select {
	case n := <-ch:
		if n.Proc() != "Digital" {
			t.Errorf("Proc() = %q", n.Proc())
		}
	default:
		t.Fatal("subscriber received nothing")
	}

	select {
	case n := <-ch:
		t.Errorf("unexpected second notification %+v", n)
	default:
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Publishing after cancel must not panic
	s.HandleNotification([]byte(`{"PROC":"Digital","Result":[{"D0":1}]}`))
}

func TestSession_SubscriberFullDoesNotBlock(t *testing.T) {
	s := newTestSession(nil, nil, nil)
	_, cancel := s.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.HandleNotification([]byte(`{"PROC":"RTC","Result":1}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on a full subscriber")
	}
}

func TestSession_LinkDispatch(t *testing.T) {
	d := &mockDialer{link: &mockLink{name: "DITCH-01"}}
	info := &recorder{}
	s := newTestSession(d, nil, info)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				d.Push(fmt.Sprintf(`{"PROC":"Pressures","Result":[%d]}`, i*10+j))
			}
		}(i)
	}
	d.Push(`{"PROC":"RTC","Result":99}`)
	wg.Wait()

	// Disconnect drains the queue before returning
	s.Disconnect(context.Background())

	if got := len(s.Points()); got != 40 {
		t.Errorf("points = %d, want 40", got)
	}
	if got := len(info.Lines()); got != 1 {
		t.Errorf("information lines = %d, want 1", got)
	}
	if s.Stats().Notifications != 41 {
		t.Errorf("Notifications = %d, want 41", s.Stats().Notifications)
	}
}

func TestSession_InboundQueueFull(t *testing.T) {
	d := &mockDialer{link: &mockLink{name: "DITCH-01"}}
	block := make(chan struct{})
	var once sync.Once
	s := newTestSession(d, nil, nil,
		WithInboundQueueSize(1),
		WithPlot(func(DataPoint) { once.Do(func() { <-block }) }),
	)
	s.Connect(context.Background())

	// The first notification parks the dispatcher in the plot sink, the second
	// fills the queue and the rest are dropped.
	d.Push(`{"PROC":"Pressures","Result":[1]}`)
	deadline := time.Now().Add(2 * time.Second)
	for len(s.Points()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		d.Push(`{"PROC":"Pressures","Result":[2]}`)
	}
	close(block)
	s.Disconnect(context.Background())

	stats := s.Stats()
	if stats.Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", stats.Dropped)
	}
	if len(s.Points()) != 2 {
		t.Errorf("points = %d, want 2", len(s.Points()))
	}
}

func TestState_String(t *testing.T) {
	if StateConnecting.String() != "connecting" {
		t.Errorf("StateConnecting = %q", StateConnecting.String())
	}
	if State(9).String() != "state(9)" {
		t.Errorf("State(9) = %q", State(9).String())
	}
}

func TestStatistics_String(t *testing.T) {
	st := NewStatistics()
	st.Notifications = 10
	st.ParseErrors = 2
	st.FramesSent = 3
	out := st.String()
	for _, want := range []string{"Notifications:", "Parse Errors:", "Frames Sent:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
	st.Reset()
	if st.Notifications != 0 || st.StartTime.IsZero() {
		t.Errorf("Reset() = %+v", st)
	}
}
