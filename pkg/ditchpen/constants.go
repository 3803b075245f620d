// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

// Package ditchpen provides a Go implementation of the ditchpen device protocol.
//
// Outbound commands are binary frames bounded by SOF/EOF markers and protected by a
// CRC-32 checksum. Inbound notifications are text messages that embed a JSON object with
// a PROC name and a Result value. This package provides frame encoding/decoding, the
// checksum engine, notification parsing and Result formatting.
package ditchpen

// Frame markers
var (
	SOF = [4]byte{0xF4, 0x3F, 0xF2, 0x1F}
	EOF = [4]byte{0xAF, 0xFB, 0xCF, 0xFD}
)

// Frame layout
const (
	MarkerSize    = 4
	TimestampSize = 4
	LengthSize    = 4
	CRCSize       = 4

	// SOF + class + timestamp + length
	HeaderSize = MarkerSize + 1 + TimestampSize + LengthSize
	// header + CRC + EOF, payload excluded
	FrameOverhead = HeaderSize + CRCSize + MarkerSize
)

// Command classes
const (
	ClassManualCommand = 0x0E
)

// Command types (first payload byte)
const (
	CmdLED1           = 0x01
	CmdLED2           = 0x02
	CmdHeaterPWM1     = 0x03
	CmdHeaterPWM2     = 0x04
	CmdDCDCEnable     = 0x05
	CmdPressureValues = 0x06
	CmdAccelValues    = 0x07
	CmdAnalogValues   = 0x08
	CmdDigitalValues  = 0x09
	CmdRTCValue       = 0x0A
	CmdReadNFC        = 0x0B
)

// Notification markers
const (
	// ProcMarker must appear (quoted) in a notification for it to be considered.
	ProcMarker = `"PROC"`
	// PressureMarker routes a notification to the pressure stream when found in the raw text.
	PressureMarker = "Pressures"
)

// PROC names sent by the device
const (
	ProcPressures = "Pressures"
	ProcAccel     = "Accel"
	ProcAnalog    = "Analog"
	ProcDigital   = "Digital"
	ProcRTC       = "RTC"
)

// DefaultTimeZone is the zone used for human-readable timestamps.
const DefaultTimeZone = "America/Montreal"

// TimestampLayout is the 24-hour wall clock format used in log lines and CSV export.
const TimestampLayout = "15:04:05"
