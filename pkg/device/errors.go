// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a live link and there is none
	ErrNotConnected = errors.New("device is not connected")
	// ErrAlreadyConnected is returned by Connect when the session is not disconnected
	ErrAlreadyConnected = errors.New("device is already connected")
	// ErrNoDescription is returned by DeviceInfo when the link cannot describe itself
	ErrNoDescription = errors.New("link does not expose device information")
)

// ConnectionError reports a failure to establish or tear down the link.
// The session is always left Disconnected.
type ConnectionError struct {
	Op  string // "connect" or "disconnect"
	Err error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying link error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransmitError reports a failed write of a command frame. Frames are not retried.
type TransmitError struct {
	Err error
}

// Error implements the error interface
func (e *TransmitError) Error() string {
	return "transmit failed: " + e.Err.Error()
}

// Unwrap returns the underlying write error
func (e *TransmitError) Unwrap() error {
	return e.Err
}
