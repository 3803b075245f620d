// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/ditchlabs/ditchterm/internal/config"
	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("DITCH_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenDialer builds the link dialer selected by the configuration
func OpenDialer(dc config.DeviceConfig) (device.Dialer, string, error) {
	switch dc.Transport {
	case config.TransportWebSocket:
		password := ""
		if dc.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		d := &device.WebSocketDialer{
			URL:           dc.URL,
			Username:      dc.Username,
			Password:      password,
			SkipSSLVerify: dc.NoSSLVerify,
			Log:           logger.WithField("component", "websocket"),
		}
		return d, fmt.Sprintf("WebSocket: %s", dc.URL), nil

	case config.TransportSerial:
		if dc.Port == "" {
			return nil, "", fmt.Errorf("serial transport needs --port or device.port")
		}
		d := &device.SerialDialer{
			Port:     dc.Port,
			BaudRate: dc.BaudRate,
			Log:      logger.WithField("component", "serial"),
		}
		return d, fmt.Sprintf("Serial: %s @ %d baud", dc.Port, dc.BaudRate), nil

	default:
		d := device.NewBLEDialer(dc.NamePrefix, dc.ScanTimeout)
		d.Log = logger.WithField("component", "ble")
		return d, fmt.Sprintf("BLE: %s*", d.NamePrefix), nil
	}
}

// newDeviceSession wires a session for the configured transport. In debug
// mode no dialer is opened.
func newDeviceSession(dc config.DeviceConfig, opts ...device.Option) (*device.Session, string, error) {
	base := []device.Option{
		device.WithDebug(dc.Debug),
		device.WithLocation(ditchpen.LoadLocation(dc.TimeZone)),
		device.WithLogger(logger.WithField("component", "device")),
	}

	if dc.Debug {
		return device.NewSession(nil, append(base, opts...)...), "Debug: simulated device", nil
	}

	dialer, info, err := OpenDialer(dc)
	if err != nil {
		return nil, "", err
	}
	return device.NewSession(dialer, append(base, opts...)...), info, nil
}

// componentLog returns a logger entry for a command
func componentLog(name string) *logrus.Entry {
	return logger.WithField("component", name)
}
