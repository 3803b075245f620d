// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/spf13/cobra"
)

var discoveryTimeout int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Scan for ditchpen devices over BLE",
	Long: `Scan for BLE devices whose advertised name starts with the name prefix
(DITCH by default) and list each one once.

Examples:
  ditchterm discovery
  ditchterm discovery --name-prefix DITCH-02 --timeout 10

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices before timeout)
  2 - Adapter error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds for discovery")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	dialer := device.NewBLEDialer(cfg.Device.NamePrefix, 0)
	dialer.Log = componentLog("ble")

	fmt.Printf("Ditchterm - Device Discovery\n")
	fmt.Printf("Name prefix: %s\n", dialer.NamePrefix)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(discoveryTimeout)*time.Second)
	defer cancel()

	seen := make(map[string]bool)
	err := dialer.Scan(ctx, func(ad device.Advertisement) bool {
		if seen[ad.Address] {
			return true
		}
		seen[ad.Address] = true
		fmt.Printf("  %-20s %s  RSSI %d dBm\n", ad.Name, ad.Address, ad.RSSI)
		return true
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		exitWith(2)
	}

	if len(seen) == 0 {
		fmt.Fprintf(os.Stderr, "\nNo devices found within %d seconds\n", discoveryTimeout)
		exitWith(1)
	}
	fmt.Printf("\nFound %d device(s)\n", len(seen))
	return nil
}
