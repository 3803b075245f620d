// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import (
	"context"
	"io"
)

// NotifyFunc receives the bytes of one inbound notification. Implementations
// may reuse the buffer after the call returns.
type NotifyFunc func(data []byte)

// Link is an established connection to a device: a transmit channel plus an
// inbound notification subscription delivered to the NotifyFunc given to Dial.
type Link interface {
	io.Writer
	io.Closer

	// Name returns the device name reported by the transport
	Name() string
}

// Describer is implemented by links that can dump their services and
// characteristics as text.
type Describer interface {
	Describe(ctx context.Context) (string, error)
}

// Dialer establishes links. Dial performs discovery, connection, characteristic
// resolution and notification subscription; notify must be called for every
// notification until the link is closed.
type Dialer interface {
	Dial(ctx context.Context, notify NotifyFunc) (Link, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context, notify NotifyFunc) (Link, error)

// Dial calls f(ctx, notify)
func (f DialerFunc) Dial(ctx context.Context, notify NotifyFunc) (Link, error) {
	return f(ctx, notify)
}
