// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"bytes"
	"testing"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
)

// ============================================================
// Frame command argument parsing
// ============================================================

func TestCommandFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		args     []string
		wantType uint8
		wantArgs []byte
	}{
		{"led1", "led1", []string{"1", "2", "3", "4"}, ditchpen.CmdLED1, []byte{1, 2, 3, 4}},
		{"led2 upper case", "LED2", []string{"255", "0", "0", "0"}, ditchpen.CmdLED2, []byte{255, 0, 0, 0}},
		{"heater pwm2", "heater", []string{"pwm2", "128"}, ditchpen.CmdHeaterPWM2, []byte{128}},
		{"dcdc on", "dcdcenable", []string{"1"}, ditchpen.CmdDCDCEnable, []byte{1}},
		{"pressure", "pressurevalues", nil, ditchpen.CmdPressureValues, nil},
		{"rtc", "rtcvalue", nil, ditchpen.CmdRTCValue, nil},
		{"nfc", "readnfc", nil, ditchpen.CmdReadNFC, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := commandFromArgs(tt.cmd, tt.args)
			if err != nil {
				t.Fatalf("commandFromArgs() error: %v", err)
			}
			if c.Type != tt.wantType {
				t.Errorf("Type = 0x%02X, want 0x%02X", c.Type, tt.wantType)
			}
			if !bytes.Equal(c.Args, tt.wantArgs) {
				t.Errorf("Args = %v, want %v", c.Args, tt.wantArgs)
			}
		})
	}
}

func TestCommandFromArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"led missing channel", "led1", []string{"1", "2", "3"}},
		{"led out of range", "led1", []string{"1", "2", "3", "256"}},
		{"heater bad output", "heater", []string{"pwm3", "10"}},
		{"dcdc bad value", "dcdcenable", []string{"2"}},
		{"read with args", "accelvalues", []string{"1"}},
		{"unknown", "launch", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := commandFromArgs(tt.cmd, tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ============================================================
// Hex input
// ============================================================

func TestParseHexRoundTrip(t *testing.T) {
	frame := ditchpen.DCDCEnableCommand(true).Encode()

	inputs := []string{
		"F4 3F F2 1F 0E 00 00 00 00 00 00 00 02 05 01",
		"f43ff21f0e",
		"0xF4:0x3F",
	}
	for _, in := range inputs {
		if _, err := parseHex(in); err != nil {
			t.Errorf("parseHex(%q) error: %v", in, err)
		}
	}

	var spaced bytes.Buffer
	for i, b := range frame {
		if i > 0 {
			spaced.WriteByte(' ')
		}
		spaced.WriteString(hexByte(b))
	}
	data, err := parseHex(spaced.String())
	if err != nil {
		t.Fatalf("parseHex() error: %v", err)
	}
	f, err := ditchpen.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error: %v", err)
	}
	if f.Type() != ditchpen.CmdDCDCEnable || !bytes.Equal(f.Args(), []byte{1}) {
		t.Errorf("decoded type 0x%02X args %v", f.Type(), f.Args())
	}

	if _, err := parseHex("F4 3G"); err == nil {
		t.Error("expected error for invalid hex digit")
	}
}

func hexByte(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}
