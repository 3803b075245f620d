// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Device.NamePrefix != "DITCH" || cfg.Device.TimeZone != "America/Montreal" {
		t.Errorf("device defaults = %+v", cfg.Device)
	}
	if cfg.Terminal.FeedFile != "feedData.csv" {
		t.Errorf("feed file = %q", cfg.Terminal.FeedFile)
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  transport: serial
  port: /dev/ttyUSB0
  scan_timeout: 5s
log:
  level: debug
redis:
  addr: redis.local:6380
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Device.Transport != TransportSerial || cfg.Device.Port != "/dev/ttyUSB0" {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Device.ScanTimeout != 5*time.Second {
		t.Errorf("scan timeout = %v", cfg.Device.ScanTimeout)
	}
	if cfg.Device.BaudRate != 115200 {
		t.Errorf("baud rate default lost: %d", cfg.Device.BaudRate)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Redis.Addr != "redis.local:6380" || cfg.Redis.KeyPrefix != "ditchterm" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "device: [unclosed"},
		{"bad transport", "device:\n  transport: zigbee\n"},
		{"bad storage", "server:\n  storage: mongo\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad baud", "device:\n  transport: serial\n  baud_rate: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
