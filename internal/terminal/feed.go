// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/sirupsen/logrus"
)

// SendFunc transmits one command
type SendFunc func(ctx context.Context, cmd ditchpen.Command) error

// Feed requests pressure readings on a fixed interval. It runs beside the
// command queue, so its sends may interleave with queued ones.
type Feed struct {
	send SendFunc
	log  *logrus.Entry

	mu     sync.Mutex
	hz     int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeed creates an idle feed
func NewFeed(send SendFunc, log *logrus.Entry) *Feed {
	return &Feed{send: send, log: log}
}

// Start begins polling at hz (> 0), replacing a running feed
func (f *Feed) Start(ctx context.Context, hz int) {
	f.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	f.mu.Lock()
	f.hz = hz
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	interval := time.Second / time.Duration(hz)
	if interval <= 0 {
		interval = time.Millisecond
	}
	go f.run(ctx, interval, done)
}

// Stop cancels future requests and reports whether a feed was running
func (f *Feed) Stop() bool {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel = nil
	f.done = nil
	f.hz = 0
	f.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Active reports the running frequency
func (f *Feed) Active() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hz, f.cancel != nil
}

func (f *Feed) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	cmd, _ := ditchpen.ReadCommand(ditchpen.StreamPressure)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.send(ctx, cmd); err != nil {
				f.log.WithError(err).Debug("feed request failed")
			}
		}
	}
}
