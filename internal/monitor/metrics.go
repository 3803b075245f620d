// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

// Package monitor exposes ditchterm metrics to Prometheus.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "ditchterm"

// StatsSource provides a snapshot of device session counters
type StatsSource interface {
	Stats() device.Statistics
	State() device.State
}

// Monitor owns a registry with the terminal, store and runtime metrics
type Monitor struct {
	log      *logrus.Entry
	registry *prometheus.Registry

	Commands       *prometheus.CounterVec
	CommandErrors  *prometheus.CounterVec
	SavedLines     *prometheus.CounterVec
	SaveDuration   prometheus.Histogram
	GoroutineCount prometheus.Gauge
	MemoryUsage    prometheus.Gauge
}

// NewMonitor creates and registers the metric set
func NewMonitor(log *logrus.Entry) *Monitor {
	m := &Monitor{
		log:      log,
		registry: prometheus.NewRegistry(),

		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminal_commands_total",
			Help:      "Terminal commands executed",
		}, []string{"command"}),

		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminal_command_errors_total",
			Help:      "Terminal commands that failed",
		}, []string{"command"}),

		SavedLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logstore_saved_total",
			Help:      "Lines saved to the log store",
		}, []string{"type"}),

		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "logstore_save_duration_seconds",
			Help:      "Time spent saving one line",
			Buckets:   prometheus.DefBuckets,
		}),

		GoroutineCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Current goroutine count",
		}),

		MemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_bytes",
			Help:      "Allocated heap bytes",
		}),
	}

	m.registry.MustRegister(
		m.Commands,
		m.CommandErrors,
		m.SavedLines,
		m.SaveDuration,
		m.GoroutineCount,
		m.MemoryUsage,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// WatchDevice exports the counters of a device session
func (m *Monitor) WatchDevice(src StatsSource) {
	m.registry.MustRegister(&deviceCollector{src: src})
}

// ObserveCommand counts one terminal command
func (m *Monitor) ObserveCommand(name string, err error) {
	m.Commands.WithLabelValues(name).Inc()
	if err != nil {
		m.CommandErrors.WithLabelValues(name).Inc()
	}
}

// ObserveSave counts one stored line
func (m *Monitor) ObserveSave(kind string, d time.Duration) {
	m.SavedLines.WithLabelValues(kind).Inc()
	m.SaveDuration.Observe(d.Seconds())
}

// Handler serves /metrics and /health
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartMetricsServer serves Handler on port until ctx is done
func (m *Monitor) StartMetricsServer(ctx context.Context, port int) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.log.Infof("metrics server listening on %s", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.WithError(err).Error("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// StartRuntimeMonitor samples goroutine and memory gauges every interval
func (m *Monitor) StartRuntimeMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			m.sampleRuntime()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Monitor) sampleRuntime() {
	m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.MemoryUsage.Set(float64(memStats.Alloc))

	m.log.Debugf("goroutines: %d, memory: %.2f MB",
		runtime.NumGoroutine(),
		float64(memStats.Alloc)/1024/1024,
	)
}
