// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import (
	"fmt"
	"time"
)

// Statistics tracks notification and command counters for a session
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound
	Notifications    uint64
	Ignored          uint64
	ParseErrors      uint64
	Dropped          uint64
	PressureSamples  uint64
	InformationLines uint64

	// Outbound
	FramesSent   uint64
	BytesSent    uint64
	SendFailures uint64

	// Rates (calculated)
	NotificationRate float64 // notifications/sec
	ErrorRate        float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// CalculateRates calculates notification and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.NotificationRate = float64(s.Notifications) / elapsed
		s.ErrorRate = float64(s.ParseErrors+s.SendFailures) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var parsePercent, ignoredPercent float64
	if s.Notifications > 0 {
		parsePercent = float64(s.ParseErrors) * 100.0 / float64(s.Notifications)
		ignoredPercent = float64(s.Ignored) * 100.0 / float64(s.Notifications)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Notifications:   %8d\n", s.Notifications)
	result += fmt.Sprintf("Pressure Samples:%8d\n", s.PressureSamples)
	result += fmt.Sprintf("Information:     %8d\n", s.InformationLines)

	if s.Ignored > 0 {
		result += fmt.Sprintf("Ignored:         %8d (%.1f%%)\n", s.Ignored, ignoredPercent)
	}
	if s.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d (%.1f%%)\n", s.ParseErrors, parsePercent)
	}
	if s.Dropped > 0 {
		result += fmt.Sprintf("Dropped (full):  %8d\n", s.Dropped)
	}

	result += fmt.Sprintf("Frames Sent:     %8d (%d bytes)\n", s.FramesSent, s.BytesSent)
	if s.SendFailures > 0 {
		result += fmt.Sprintf("Send Failures:   %8d\n", s.SendFailures)
	}

	result += fmt.Sprintf("Notify Rate:     %8.1f msgs/sec\n", s.NotificationRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
