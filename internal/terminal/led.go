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

// DefaultFlashHalfPeriod is the on (and off) time of a flashing pattern
const DefaultFlashHalfPeriod = 250 * time.Millisecond

// Level thresholds for status patterns
const (
	levelGood = 50
	levelLow  = 10
)

// levelColor maps a percentage to green, yellow or red
func levelColor(percent int) ditchpen.Color {
	switch {
	case percent >= levelGood:
		return ditchpen.ColorGreen
	case percent >= levelLow:
		return ditchpen.ColorYellow
	default:
		return ditchpen.ColorRed
	}
}

// LEDs drives the status patterns. Each pattern runs on its own timer,
// independent of the command queue and of other patterns.
type LEDs struct {
	send      SendFunc
	log       *logrus.Entry
	halfFlash time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLEDs creates a pattern driver bound to ctx
func NewLEDs(ctx context.Context, send SendFunc, log *logrus.Entry) *LEDs {
	ctx, cancel := context.WithCancel(ctx)
	return &LEDs{
		send:      send,
		log:       log,
		halfFlash: DefaultFlashHalfPeriod,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Set writes LED1 then LED2; a nil color leaves that LED unchanged
func (l *LEDs) Set(ctx context.Context, led1, led2 *ditchpen.Color) error {
	if led1 != nil {
		cmd, _ := ditchpen.LEDCommand(1, *led1)
		if err := l.send(ctx, cmd); err != nil {
			return err
		}
	}
	if led2 != nil {
		cmd, _ := ditchpen.LEDCommand(2, *led2)
		if err := l.send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Off turns both LEDs off
func (l *LEDs) Off(ctx context.Context) error {
	off := ditchpen.ColorOff
	return l.Set(ctx, &off, &off)
}

// OffAfter turns both LEDs off once d has elapsed
func (l *LEDs) OffAfter(d time.Duration) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-l.ctx.Done():
			return
		case <-timer.C:
		}
		if err := l.Off(l.ctx); err != nil {
			l.log.WithError(err).Debug("LED off failed")
		}
	}()
}

// Flash alternates the colors with off for d, then turns both LEDs off
func (l *LEDs) Flash(led1, led2 *ditchpen.Color, d time.Duration) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		end := time.Now().Add(d)
		for time.Now().Before(end) {
			if err := l.Set(l.ctx, led1, led2); err != nil {
				l.log.WithError(err).Debug("LED flash failed")
			}
			if !l.sleep(l.halfFlash) {
				return
			}
			if err := l.Off(l.ctx); err != nil {
				l.log.WithError(err).Debug("LED flash failed")
			}
			if !l.sleep(l.halfFlash) {
				return
			}
		}
		if err := l.Off(l.ctx); err != nil {
			l.log.WithError(err).Debug("LED off failed")
		}
	}()
}

func (l *LEDs) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Wait blocks until every running pattern has finished
func (l *LEDs) Wait() {
	l.wg.Wait()
}

// Close cancels running patterns without turning the LEDs off
func (l *LEDs) Close() {
	l.cancel()
	l.wg.Wait()
}

//////////////////////////////////////////////////////////////
// Patterns
//////////////////////////////////////////////////////////////

// Charging shows the level on both LEDs
func (l *LEDs) Charging(ctx context.Context, percent int, d time.Duration) error {
	c := levelColor(percent)
	if err := l.Set(ctx, &c, &c); err != nil {
		return err
	}
	l.OffAfter(d)
	return nil
}

// BatteryLevel shows a good level on LED2 and a low one on LED1
func (l *LEDs) BatteryLevel(ctx context.Context, percent int, d time.Duration) error {
	c := levelColor(percent)
	var err error
	if percent >= levelGood {
		err = l.Set(ctx, nil, &c)
	} else {
		err = l.Set(ctx, &c, nil)
	}
	if err != nil {
		return err
	}
	l.OffAfter(d)
	return nil
}

// Liquid shows the level on LED2, flashing red when critical
func (l *LEDs) Liquid(ctx context.Context, percent int, d time.Duration) error {
	c := levelColor(percent)
	if percent < levelLow {
		l.Flash(nil, &c, d)
		return nil
	}
	if err := l.Set(ctx, nil, &c); err != nil {
		return err
	}
	l.OffAfter(d)
	return nil
}

// Update flashes white on both LEDs
func (l *LEDs) Update(d time.Duration) {
	white := ditchpen.ColorWhite
	l.Flash(&white, &white, d)
}

// Error flashes red on both LEDs
func (l *LEDs) Error(d time.Duration) {
	red := ditchpen.ColorRed
	l.Flash(&red, &red, d)
}
