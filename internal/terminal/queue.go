// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"context"
	"sync"
)

// ExecFunc runs one command line
type ExecFunc func(ctx context.Context, line string) error

// Queue runs command lines one at a time in arrival order. The next line is
// started only after the previous one returns, whether or not it failed.
type Queue struct {
	exec ExecFunc

	mu      sync.Mutex
	pending []string
	closed  bool
	started bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue creates a queue; Start launches its worker
func NewQueue(exec ExecFunc) *Queue {
	return &Queue{
		exec: exec,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the worker. It stops when ctx is cancelled or, after Close,
// once the queue is drained.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go q.run(ctx)
}

// Enqueue appends a line
func (q *Queue) Enqueue(line string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, line)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Len returns the number of lines not yet started
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting lines and waits for the worker to finish the rest
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.mu.Unlock()

	q.signal()
	if started {
		<-q.done
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			line := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()

			q.exec(ctx, line)
			continue
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}
