// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import "errors"

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("command queue is closed")

// ValidationError reports malformed command syntax. The command is not executed.
type ValidationError struct {
	Command string
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

func invalid(command, message string) *ValidationError {
	return &ValidationError{Command: command, Message: message}
}

// reportedError wraps an error the device session already printed
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }
