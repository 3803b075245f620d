// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

// ============================================================
// Notification Parse Tests
// ============================================================

func TestParseNotification_Pressure(t *testing.T) {
	n, err := ParseNotification([]byte(`{"PROC":"Pressures","Result":[42.5]}"PROC"`))
	if err != nil {
		t.Fatalf("ParseNotification() error = %v", err)
	}
	if n == nil {
		t.Fatal("ParseNotification() returned nil notification")
	}
	if !n.IsPressure() {
		t.Error("IsPressure() = false, want true")
	}
	if n.JSON() != `{"PROC":"Pressures","Result":[42.5]}` {
		t.Errorf("JSON() = %q", n.JSON())
	}
	v, ok := n.PressureValue()
	if !ok || v != 42.5 {
		t.Errorf("PressureValue() = %v, %v, want 42.5", v, ok)
	}
}

func TestParseNotification_FirstValueOnly(t *testing.T) {
	n, err := ParseNotification([]byte(`{"PROC":"Pressures","Result":[1,2,3]}`))
	if err != nil || n == nil {
		t.Fatalf("ParseNotification() = %v, %v", n, err)
	}
	if v, _ := n.PressureValue(); v != 1 {
		t.Errorf("PressureValue() = %v, want 1", v)
	}
}

func TestParseNotification_PressureCoercion(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   float64
		wantOK bool
	}{
		{"string number", `{"PROC":"Pressures","Result":["101.3"]}`, 101.3, true},
		{"skips non numeric", `{"PROC":"Pressures","Result":["n/a",7]}`, 7, true},
		{"all non numeric", `{"PROC":"Pressures","Result":["n/a",{"a":1}]}`, 0, false},
		{"empty array", `{"PROC":"Pressures","Result":[]}`, 0, false},
		{"scalar result", `{"PROC":"Pressures","Result":5}`, 0, false},
		{"null element is zero", `{"PROC":"Pressures","Result":[null,9]}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.text))
			if err != nil || n == nil {
				t.Fatalf("ParseNotification() = %v, %v", n, err)
			}
			got, ok := n.PressureValue()
			if ok != tt.wantOK {
				t.Fatalf("PressureValue() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("PressureValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseNotification_Ignored(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no PROC marker", `{"Result":[1,2,3]}`},
		{"unquoted PROC", `PROC {"Result":[1]}`},
		{"empty", ``},
		{"marker without object", `"PROC" but no braces`},
		{"object split across lines", "\"PROC\" {\"PROC\":\"A\",\n\"Result\":1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.text))
			if n != nil || err != nil {
				t.Errorf("ParseNotification() = %v, %v, want nil, nil", n, err)
			}
		})
	}
}

func TestParseNotification_ParseError(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"truncated", `{"PROC":"Pressures","Result":[1,}`},
		{"greedy span over two objects", `{"PROC":"A"} and {"PROC":"B"}`},
		{"single quotes", `{'PROC':'A'} "PROC"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.text))
			if n != nil {
				t.Errorf("expected nil notification, got %+v", n)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if parseErr.Unwrap() == nil {
				t.Error("ParseError has no underlying error")
			}
		})
	}
}

// The routing heuristic looks at the raw text, not the PROC field.
func TestParseNotification_PressureSniffing(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"proc is Pressures", `{"PROC":"Pressures","Result":[1]}`, true},
		{"marker outside JSON", `Pressures: {"PROC":"Analog","Result":[1]}`, true},
		{"marker in a key", `{"PROC":"Analog","Result":[{"Pressures":1}]}`, true},
		{"no marker", `{"PROC":"Pressure","Result":[1]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.text))
			if err != nil || n == nil {
				t.Fatalf("ParseNotification() = %v, %v", n, err)
			}
			if n.IsPressure() != tt.want {
				t.Errorf("IsPressure() = %v, want %v", n.IsPressure(), tt.want)
			}
		})
	}
}

func TestNotification_Proc(t *testing.T) {
	n, _ := ParseNotification([]byte(`{"PROC":"RTC","Result":1}`))
	if n.Proc() != "RTC" {
		t.Errorf("Proc() = %q", n.Proc())
	}
	n, _ = ParseNotification([]byte(`"PROC" {"Result":1}`))
	if n.Proc() != "undefined" {
		t.Errorf("Proc() without PROC field = %q, want undefined", n.Proc())
	}
}

func TestNotification_Numbers(t *testing.T) {
	n, _ := ParseNotification([]byte(`{"PROC":"Accel","Result":[1,"2",true,"x",-0.5]}`))
	got := n.Numbers()
	want := []float64{1, 2, 1, -0.5}
	if len(got) != len(want) {
		t.Fatalf("Numbers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Numbers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatInformation(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "scalar",
			text:   `{"PROC":"RTC","Result":1700000000}`,
			want:   "(10:04:05) [RTC]: Data: 1700000000 ",
			wantOK: true,
		},
		{
			name:   "scalar zero is a reading",
			text:   `{"PROC":"RTC","Result":0}`,
			want:   "(10:04:05) [RTC]: Data: 0 ",
			wantOK: true,
		},
		{
			name:   "number array",
			text:   `{"PROC":"Accel","Result":[0.12,-9.81,"3","x"]}`,
			want:   "(10:04:05) [Accel]: Data: 0.12, -9.81, 3 ",
			wantOK: true,
		},
		{
			name:   "object array",
			text:   `{"PROC":"Analog","Result":[{"A0":1.5,"A1":2},{"A2":3}]}`,
			want:   "(10:04:05) [Analog]: Data: A0: 1.5, A1: 2 | A2: 3",
			wantOK: true,
		},
		{
			name:   "object key order kept",
			text:   `{"PROC":"Digital","Result":[{"z":true,"a":false}]}`,
			want:   "(10:04:05) [Digital]: Data: z: true, a: false",
			wantOK: true,
		},
		{
			name:   "nested values",
			text:   `{"PROC":"NFC","Result":[{"uid":[4,17],"tag":{"t":1},"n":null}]}`,
			want:   "(10:04:05) [NFC]: Data: uid: 4,17, tag: [object Object], n: null",
			wantOK: true,
		},
		{
			name:   "index keys enumerate first",
			text:   `{"PROC":"Digital","Result":[{"b":1,"0":2}]}`,
			want:   "(10:04:05) [Digital]: Data: 0: 2, b: 1",
			wantOK: true,
		},
		{
			name:   "index keys ascending, others in order",
			text:   `{"PROC":"Analog","Result":[{"ch10":1,"10":5,"01":3,"2":7}]}`,
			want:   "(10:04:05) [Analog]: Data: 2: 7, 10: 5, ch10: 1, 01: 3",
			wantOK: true,
		},
		{"missing result", `{"PROC":"RTC"}`, "", false},
		{"false result", `{"PROC":"RTC","Result":false}`, "", false},
		{"empty string result", `{"PROC":"RTC","Result":""}`, "", false},
		{"null result", `{"PROC":"RTC","Result":null}`, "", false},
		{"empty array", `{"PROC":"RTC","Result":[]}`, "", false},
		{"string array", `{"PROC":"RTC","Result":["a"]}`, "", false},
		{"string scalar", `{"PROC":"RTC","Result":"a"}`, "", false},
		{"object then null", `{"PROC":"Analog","Result":[{"a":1},null]}`, "", false},
	}

	ts := FormatTimestamp(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC), LoadLocation(DefaultTimeZone))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNotification([]byte(tt.text))
			if err != nil || n == nil {
				t.Fatalf("ParseNotification() = %v, %v", n, err)
			}
			got, ok := FormatInformation(n, ts)
			if ok != tt.wantOK {
				t.Fatalf("FormatInformation() ok = %v, want %v (line %q)", ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Errorf("FormatInformation() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	instant := time.Date(2025, 7, 1, 23, 59, 1, 0, time.UTC)

	if got := FormatTimestamp(instant, time.UTC); got != "23:59:01" {
		t.Errorf("UTC = %q", got)
	}
	// EDT, UTC-4
	if got := FormatTimestamp(instant, LoadLocation(DefaultTimeZone)); got != "19:59:01" {
		t.Errorf("Montreal = %q", got)
	}
	if got := FormatTimestamp(instant, nil); got != "23:59:01" {
		t.Errorf("nil location = %q", got)
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	if LoadLocation("") != time.UTC {
		t.Error("empty name should give UTC")
	}
	if LoadLocation("Not/AZone") != time.UTC {
		t.Error("unknown zone should give UTC")
	}
}

func TestFormatNotification(t *testing.T) {
	n, _ := ParseNotification([]byte(`{"PROC":"Pressures","Result":[12,13]}`))
	out := FormatNotification(n, time.UTC)
	for _, want := range []string{"PRESSURE Pressures", "Result: 12,13", "Sample: 12 Pa"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatNotification() = %q, missing %q", out, want)
		}
	}
}
