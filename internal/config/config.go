// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

// Package config loads the ditchterm YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transports
const (
	TransportBLE       = "ble"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Config is the complete configuration file
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Terminal TerminalConfig `yaml:"terminal"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// DeviceConfig selects and parameterizes the device link
type DeviceConfig struct {
	Transport   string        `yaml:"transport"`
	NamePrefix  string        `yaml:"name_prefix"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	URL         string        `yaml:"url"`
	Username    string        `yaml:"username"`
	NoSSLVerify bool          `yaml:"no_ssl_verify"`
	Debug       bool          `yaml:"debug"`
	TimeZone    string        `yaml:"time_zone"`
}

// TerminalConfig controls the interactive terminal
type TerminalConfig struct {
	TUI         bool   `yaml:"tui"`
	ExportDir   string `yaml:"export_dir"`
	FeedFile    string `yaml:"feed_file"`
	HistoryFile string `yaml:"history_file"`
	SaveURL     string `yaml:"save_url"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// RedisConfig locates the log store
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	KeyPrefix  string `yaml:"key_prefix"`
	MaxEntries int64  `yaml:"max_entries"`
}

// ServerConfig controls the save-information endpoint
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Storage string `yaml:"storage"`
}

// MonitorConfig controls the metrics endpoint
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

// LoadConfig reads a YAML file over the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetDefaultConfig returns the built-in configuration
func GetDefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Transport:   TransportBLE,
			NamePrefix:  "DITCH",
			ScanTimeout: 30 * time.Second,
			BaudRate:    115200,
			TimeZone:    "America/Montreal",
		},
		Terminal: TerminalConfig{
			TUI:       true,
			ExportDir: ".",
			FeedFile:  "feedData.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			KeyPrefix:  "ditchterm",
			MaxEntries: 10000,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3000,
			Storage: "redis",
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
	}
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case TransportBLE, TransportSerial, TransportWebSocket:
	default:
		return fmt.Errorf("invalid device.transport %q (use ble, serial or websocket)", c.Device.Transport)
	}
	if c.Device.Transport == TransportSerial && c.Device.BaudRate <= 0 {
		return fmt.Errorf("invalid device.baud_rate %d", c.Device.BaudRate)
	}
	switch c.Server.Storage {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid server.storage %q (use redis or memory)", c.Server.Storage)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
