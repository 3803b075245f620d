// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

// Package run groups decoded device messages into named, time-bounded runs
// inside a recording session.
package run

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
)

var (
	// ErrNoActiveRun is returned when a message or EndRun arrives with no current run
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunEnded is returned when a message targets a run that has already ended
	ErrRunEnded = errors.New("run has ended")
	// ErrSessionEnded is returned by operations on an ended session
	ErrSessionEnded = errors.New("session has ended")
	// ErrUnrouted is returned for messages whose PROC has no stream
	ErrUnrouted = errors.New("message has no stream")
)

// PressureSample is one Pressures message
type PressureSample struct {
	Values    []float64 `json:"values" cbor:"values"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
}

// AccelSample is one Accel message
type AccelSample struct {
	X         float64   `json:"x" cbor:"x"`
	Y         float64   `json:"y" cbor:"y"`
	Z         float64   `json:"z" cbor:"z"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
}

// ChannelSample is one Analog or Digital message with its single-key
// channel objects merged. A channel repeated in the message keeps its last value.
type ChannelSample struct {
	Channels  map[string]any `json:"channels" cbor:"channels"`
	Timestamp time.Time      `json:"timestamp" cbor:"timestamp"`
}

// RTCSample is one RTC message
type RTCSample struct {
	Value     any       `json:"value" cbor:"value"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
}

// Data holds the series of a run, one per stream kind
type Data struct {
	Pressure []PressureSample `json:"pressure" cbor:"pressure"`
	Accel    []AccelSample    `json:"accel" cbor:"accel"`
	Analog   []ChannelSample  `json:"analog" cbor:"analog"`
	Digital  []ChannelSample  `json:"digital" cbor:"digital"`
	RTC      []RTCSample      `json:"rtc" cbor:"rtc"`
}

// Len returns the number of samples of kind
func (d *Data) Len(kind ditchpen.StreamKind) int {
	switch kind {
	case ditchpen.StreamPressure:
		return len(d.Pressure)
	case ditchpen.StreamAccel:
		return len(d.Accel)
	case ditchpen.StreamAnalog:
		return len(d.Analog)
	case ditchpen.StreamDigital:
		return len(d.Digital)
	case ditchpen.StreamRTC:
		return len(d.RTC)
	}
	return 0
}

// Run is a named recording. It accepts samples until it is ended.
type Run struct {
	Name              string     `json:"name" cbor:"name"`
	CreationTimestamp time.Time  `json:"creationTimestamp" cbor:"creationTimestamp"`
	EndTimestamp      *time.Time `json:"endTimestamp" cbor:"endTimestamp"`
	DurationSeconds   *float64   `json:"durationSeconds" cbor:"durationSeconds"`
	Data              Data       `json:"data" cbor:"data"`
}

func newRun(name string, now time.Time) *Run {
	return &Run{
		Name:              name,
		CreationTimestamp: now,
		Data: Data{
			Pressure: []PressureSample{},
			Accel:    []AccelSample{},
			Analog:   []ChannelSample{},
			Digital:  []ChannelSample{},
			RTC:      []RTCSample{},
		},
	}
}

// Active reports whether the run still accepts samples
func (r *Run) Active() bool {
	return r.EndTimestamp == nil
}

func (r *Run) end(now time.Time) {
	r.EndTimestamp = &now
	d := now.Sub(r.CreationTimestamp).Seconds()
	r.DurationSeconds = &d
}

// receive routes one decoded message by its PROC name
func (r *Run) receive(msg ditchpen.Object, now time.Time) error {
	if !r.Active() {
		return ErrRunEnded
	}

	procVal, _ := msg.Get("PROC")
	proc, _ := procVal.(string)
	result, _ := msg.Get("Result")

	switch proc {
	case ditchpen.ProcPressures:
		r.Data.Pressure = append(r.Data.Pressure, PressureSample{
			Values:    pressureValues(result),
			Timestamp: now,
		})

	case ditchpen.ProcAccel:
		arr, ok := result.([]any)
		if !ok || len(arr) < 3 {
			return fmt.Errorf("accel result is not a 3-element array: %s", ditchpen.FormatValue(result))
		}
		var xyz [3]float64
		for i := range xyz {
			f, ok := finite(arr[i])
			if !ok {
				return fmt.Errorf("accel component %d is not numeric: %s", i, ditchpen.FormatValue(arr[i]))
			}
			xyz[i] = f
		}
		r.Data.Accel = append(r.Data.Accel, AccelSample{X: xyz[0], Y: xyz[1], Z: xyz[2], Timestamp: now})

	case ditchpen.ProcAnalog, ditchpen.ProcDigital:
		arr, ok := result.([]any)
		if !ok {
			return fmt.Errorf("%s result is not an array", proc)
		}
		sample := ChannelSample{Channels: mergeChannels(arr), Timestamp: now}
		if proc == ditchpen.ProcAnalog {
			r.Data.Analog = append(r.Data.Analog, sample)
		} else {
			r.Data.Digital = append(r.Data.Digital, sample)
		}

	case ditchpen.ProcRTC:
		r.Data.RTC = append(r.Data.RTC, RTCSample{Value: plain(result), Timestamp: now})

	default:
		return ErrUnrouted
	}
	return nil
}

func pressureValues(result any) []float64 {
	switch v := result.(type) {
	case []any:
		values := make([]float64, 0, len(v))
		for _, e := range v {
			if f, ok := finite(e); ok {
				values = append(values, f)
			}
		}
		return values
	case float64:
		return []float64{v}
	}
	return []float64{}
}

// finite coerces a value to a number that both export encoders accept
func finite(v any) (float64, bool) {
	f, ok := ditchpen.ToNumber(v)
	if !ok || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// mergeChannels flattens [{"A0":1},{"A1":2}] into {"A0":1,"A1":2}.
// Elements that are not objects carry no channels.
func mergeChannels(arr []any) map[string]any {
	merged := make(map[string]any)
	for _, e := range arr {
		obj, ok := e.(ditchpen.Object)
		if !ok {
			continue
		}
		for _, f := range obj {
			merged[f.Key] = plain(f.Value)
		}
	}
	return merged
}

// plain converts decoded JSON into values the JSON and CBOR encoders handle
func plain(v any) any {
	switch val := v.(type) {
	case ditchpen.Object:
		m := make(map[string]any, len(val))
		for _, f := range val {
			m[f.Key] = plain(f.Value)
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = plain(e)
		}
		return out
	}
	return v
}
