// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package monitor

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

type fakeStats struct {
	stats device.Statistics
	state device.State
}

func (f *fakeStats) Stats() device.Statistics { return f.stats }
func (f *fakeStats) State() device.State      { return f.state }

func newTestMonitor() *Monitor {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewMonitor(logrus.NewEntry(log))
}

func TestObserveCommand(t *testing.T) {
	m := newTestMonitor()
	m.ObserveCommand("connect", nil)
	m.ObserveCommand("connect", errors.New("boom"))
	m.ObserveCommand("led1", nil)

	if got := testutil.ToFloat64(m.Commands.WithLabelValues("connect")); got != 2 {
		t.Errorf("connect commands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CommandErrors.WithLabelValues("connect")); got != 1 {
		t.Errorf("connect errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Commands.WithLabelValues("led1")); got != 1 {
		t.Errorf("led1 commands = %v, want 1", got)
	}
}

func TestObserveSave(t *testing.T) {
	m := newTestMonitor()
	m.ObserveSave("terminal", 3*time.Millisecond)
	m.ObserveSave("information", time.Millisecond)

	if got := testutil.ToFloat64(m.SavedLines.WithLabelValues("terminal")); got != 1 {
		t.Errorf("terminal saves = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.SaveDuration); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
}

func TestWatchDevice(t *testing.T) {
	m := newTestMonitor()
	src := &fakeStats{
		stats: device.Statistics{Notifications: 7, PressureSamples: 4, ParseErrors: 1, FramesSent: 3, BytesSent: 66},
		state: device.StateConnected,
	}
	m.WatchDevice(src)

	expected := `
# HELP ditchterm_device_frames_sent_total Command frames written to the device
# TYPE ditchterm_device_frames_sent_total counter
ditchterm_device_frames_sent_total 3
# HELP ditchterm_device_connected 1 while a device is connected
# TYPE ditchterm_device_connected gauge
ditchterm_device_connected 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"ditchterm_device_frames_sent_total", "ditchterm_device_connected")
	if err != nil {
		t.Errorf("GatherAndCompare: %v", err)
	}

	src.state = device.StateDisconnected
	src.stats.FramesSent = 5
	expected = `
# HELP ditchterm_device_frames_sent_total Command frames written to the device
# TYPE ditchterm_device_frames_sent_total counter
ditchterm_device_frames_sent_total 5
# HELP ditchterm_device_connected 1 while a device is connected
# TYPE ditchterm_device_connected gauge
ditchterm_device_connected 0
`
	err = testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"ditchterm_device_frames_sent_total", "ditchterm_device_connected")
	if err != nil {
		t.Errorf("GatherAndCompare after update: %v", err)
	}
}

func TestHandler(t *testing.T) {
	m := newTestMonitor()
	m.ObserveCommand("help", nil)
	m.sampleRuntime()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("/health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`ditchterm_terminal_commands_total{command="help"} 1`,
		"ditchterm_goroutines",
		"ditchterm_memory_usage_bytes",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}
