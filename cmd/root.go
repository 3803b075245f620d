// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ditchlabs/ditchterm/internal/config"
	"github.com/ditchlabs/ditchterm/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// BLE flags
	namePrefix  string
	scanTimeout time.Duration
	debugMode   bool

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	logLevel string
	timeZone string
)

// Loaded in PersistentPreRunE
var (
	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "ditchterm",
	Short: "Ditch terminal for ditchpen devices",
	Long: `Ditchterm - A terminal for driving ditchpen sensor/actuator devices.

Sends framed manual commands, decodes PROC notifications into pressure samples
and information lines, records runs and exports them.

Connection modes:
  BLE (default): scans for a device named DITCH* [--name-prefix DITCH]
  Serial:        --port /dev/ttyUSB0 [--baud 115200]
  WebSocket:     --url ws://host/path [--username user]
  Debug:         --debug (no device; commands are only printed)

For WebSocket authentication, the password is read from the DITCH_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	// BLE flags
	rootCmd.PersistentFlags().StringVar(&namePrefix, "name-prefix", "", "Advertised name prefix to connect to")
	rootCmd.PersistentFlags().DurationVar(&scanTimeout, "scan-timeout", 0, "How long to scan for a device")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Simulate the device: print commands instead of sending them")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&timeZone, "time-zone", "", "IANA zone for notification timestamps")
}

// loadSettings merges the config file, defaults and flags, then sets up logging
func loadSettings(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.GetDefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("name-prefix") {
		cfg.Device.NamePrefix = namePrefix
	}
	if flags.Changed("scan-timeout") {
		cfg.Device.ScanTimeout = scanTimeout
	}
	if flags.Changed("debug") {
		cfg.Device.Debug = debugMode
	}
	if portName != "" {
		cfg.Device.Transport = config.TransportSerial
		cfg.Device.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Device.BaudRate = baudRate
	}
	if wsURL != "" {
		cfg.Device.Transport = config.TransportWebSocket
		cfg.Device.URL = wsURL
	}
	if wsUsername != "" {
		cfg.Device.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Device.NoSSLVerify = wsNoSSLVerify
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if timeZone != "" {
		cfg.Device.TimeZone = timeZone
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err = logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// exitWith closes the log and exits; used by commands with documented exit codes
func exitWith(code int) {
	if logCloser != nil {
		logCloser.Close()
	}
	os.Exit(code)
}
