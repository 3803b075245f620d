// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ParseError is returned when a notification's JSON payload cannot be decoded.
// Callers drop the notification; the transport has no retransmission.
type ParseError struct {
	Text string
	Err  error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return "error parsing JSON: " + e.Err.Error()
}

// Unwrap returns the underlying decode error
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Notification is an application message pushed by the device.
type Notification struct {
	raw       string
	json      string
	payload   Object
	timestamp time.Time
}

// jsonSpan matches the first '{' through the last '}' on the same line.
var jsonSpan = regexp.MustCompile(`\{[^\n\r\x{2028}\x{2029}]*\}`)

// ParseNotification decodes one inbound notification.
//
// It returns nil, nil when the text does not carry the "PROC" marker or has no
// brace-delimited object; such messages are ignored. A JSON decode failure
// returns a *ParseError.
func ParseNotification(raw []byte) (*Notification, error) {
	text := strings.ToValidUTF8(string(raw), "�")
	if !strings.Contains(text, ProcMarker) {
		return nil, nil
	}

	span := jsonSpan.FindString(text)
	if span == "" {
		return nil, nil
	}

	v, err := ParseJSON([]byte(span))
	if err != nil {
		return nil, &ParseError{Text: span, Err: err}
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, &ParseError{Text: span, Err: errNotObject}
	}

	return &Notification{
		raw:       text,
		json:      span,
		payload:   obj,
		timestamp: time.Now(),
	}, nil
}

var errNotObject = errors.New("payload is not a JSON object")

// Raw returns the full notification text
func (n *Notification) Raw() string {
	return n.raw
}

// JSON returns the extracted JSON object text
func (n *Notification) JSON() string {
	return n.json
}

// Payload returns the decoded JSON object
func (n *Notification) Payload() Object {
	return n.payload
}

// Timestamp returns the time the notification was decoded
func (n *Notification) Timestamp() time.Time {
	return n.timestamp
}

// Proc returns the PROC name as the device's log lines print it
// ("undefined" when missing).
func (n *Notification) Proc() string {
	v, ok := n.payload.Get("PROC")
	if !ok {
		return "undefined"
	}
	return FormatValue(v)
}

// Result returns the decoded Result value
func (n *Notification) Result() (any, bool) {
	return n.payload.Get("Result")
}

// IsPressure reports whether the raw text names the pressure stream.
// Routing sniffs the text rather than the parsed PROC field so that devices
// sending the marker outside strict JSON still reach the pressure path.
func (n *Notification) IsPressure() bool {
	return strings.Contains(n.raw, PressureMarker)
}

// Numbers coerces every element of an array Result to a number, dropping
// values that are not numeric. It returns nil for non-array Results.
func (n *Notification) Numbers() []float64 {
	result, _ := n.Result()
	arr, ok := result.([]any)
	if !ok {
		return nil
	}
	return numbers(arr)
}

func numbers(arr []any) []float64 {
	out := make([]float64, 0, len(arr))
	for _, e := range arr {
		if f, ok := ToNumber(e); ok {
			out = append(out, f)
		}
	}
	return out
}

// PressureValue returns the sample carried by a pressure notification: the first
// numeric element of the Result array. Later values are discarded.
func (n *Notification) PressureValue() (float64, bool) {
	nums := n.Numbers()
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0], true
}
