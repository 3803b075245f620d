// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package monitor

import (
	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	descNotifications = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "notifications_total"),
		"Notifications received from the device, by outcome",
		[]string{"outcome"}, nil,
	)
	descFramesSent = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "frames_sent_total"),
		"Command frames written to the device",
		nil, nil,
	)
	descBytesSent = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "bytes_sent_total"),
		"Command bytes written to the device",
		nil, nil,
	)
	descSendFailures = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "send_failures_total"),
		"Command writes that failed",
		nil, nil,
	)
	descConnected = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "connected"),
		"1 while a device is connected",
		nil, nil,
	)
)

// deviceCollector reads the session counters at scrape time
type deviceCollector struct {
	src StatsSource
}

func (c *deviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descNotifications
	ch <- descFramesSent
	ch <- descBytesSent
	ch <- descSendFailures
	ch <- descConnected
}

func (c *deviceCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()

	outcomes := []struct {
		label string
		value uint64
	}{
		{"received", stats.Notifications},
		{"pressure", stats.PressureSamples},
		{"information", stats.InformationLines},
		{"ignored", stats.Ignored},
		{"parse_error", stats.ParseErrors},
		{"dropped", stats.Dropped},
	}
	for _, o := range outcomes {
		ch <- prometheus.MustNewConstMetric(descNotifications, prometheus.CounterValue, float64(o.value), o.label)
	}

	ch <- prometheus.MustNewConstMetric(descFramesSent, prometheus.CounterValue, float64(stats.FramesSent))
	ch <- prometheus.MustNewConstMetric(descBytesSent, prometheus.CounterValue, float64(stats.BytesSent))
	ch <- prometheus.MustNewConstMetric(descSendFailures, prometheus.CounterValue, float64(stats.SendFailures))

	connected := 0.0
	if c.src.State() == device.StateConnected {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(descConnected, prometheus.GaugeValue, connected)
}
