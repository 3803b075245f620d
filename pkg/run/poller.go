// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package run

import (
	"context"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/sirupsen/logrus"
)

// Start launches one poller per stream kind with a non-zero frequency. Each
// poller sends the kind's read command on its own ticker until the session
// ends or ctx is cancelled. Pollers are not coordinated with any command
// queue. Start is a no-op without a sender or when pollers already run.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endTimestamp != nil {
		return ErrSessionEnded
	}
	if s.sender == nil || s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, kind := range ditchpen.StreamKinds {
		hz := s.settings[kind]
		if hz <= 0 {
			continue
		}
		cmd, err := ditchpen.ReadCommand(kind)
		if err != nil {
			continue
		}
		interval := time.Duration(float64(time.Second) / hz)
		s.pollers.Add(1)
		go s.poll(ctx, kind, cmd, interval)
	}
	return nil
}

func (s *Session) poll(ctx context.Context, kind ditchpen.StreamKind, cmd ditchpen.Command, interval time.Duration) {
	defer s.pollers.Done()

	log := s.log.WithFields(logrus.Fields{"stream": kind, "interval": interval})
	log.Debug("poller started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("poller stopped")
			return
		case <-ticker.C:
			if err := s.sender.Send(ctx, cmd); err != nil {
				log.WithError(err).Debug("poll send failed")
			}
		}
	}
}
