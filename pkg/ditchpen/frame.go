// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Frame represents a decoded command frame
type Frame struct {
	Class     uint8
	Timestamp uint32
	Length    uint32
	Payload   []byte
	CRC       uint32
}

// Type returns the command type (first payload byte), or 0 for an empty payload
func (f *Frame) Type() uint8 {
	if len(f.Payload) == 0 {
		return 0
	}
	return f.Payload[0]
}

// Args returns the payload bytes after the command type
func (f *Frame) Args() []byte {
	if len(f.Payload) == 0 {
		return nil
	}
	return f.Payload[1:]
}

// FrameError describes why a byte sequence is not a valid frame
type FrameError struct {
	Reason string
}

// Error implements the error interface
func (e *FrameError) Error() string {
	return "invalid frame: " + e.Reason
}

// DecodeFrame parses a complete frame and validates markers, length and CRC.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameOverhead {
		return nil, &FrameError{Reason: fmt.Sprintf("too short: %d bytes (min %d)", len(data), FrameOverhead)}
	}
	if !bytes.Equal(data[:MarkerSize], SOF[:]) {
		return nil, &FrameError{Reason: fmt.Sprintf("bad SOF % X", data[:MarkerSize])}
	}
	if !bytes.Equal(data[len(data)-MarkerSize:], EOF[:]) {
		return nil, &FrameError{Reason: fmt.Sprintf("bad EOF % X", data[len(data)-MarkerSize:])}
	}

	f := &Frame{
		Class:     data[MarkerSize],
		Timestamp: binary.BigEndian.Uint32(data[MarkerSize+1:]),
		Length:    binary.BigEndian.Uint32(data[MarkerSize+1+TimestampSize:]),
	}

	payloadLen := len(data) - FrameOverhead
	if int(f.Length) != payloadLen {
		return nil, &FrameError{Reason: fmt.Sprintf("length field %d does not match payload size %d", f.Length, payloadLen)}
	}

	payloadEnd := HeaderSize + payloadLen
	f.Payload = append([]byte(nil), data[HeaderSize:payloadEnd]...)
	f.CRC = binary.BigEndian.Uint32(data[payloadEnd:])

	calculated := CalculateCRC(data[MarkerSize:payloadEnd])
	if calculated != f.CRC {
		return nil, &FrameError{Reason: fmt.Sprintf("CRC mismatch: expected 0x%08X, got 0x%08X", calculated, f.CRC)}
	}

	return f, nil
}
