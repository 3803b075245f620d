// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded notifications as they arrive",
	Long: `Connect to the device and print every decoded PROC notification with its
timestamp and payload until Ctrl+C, then print the session statistics.

Notifications without the PROC marker are counted as ignored; malformed ones
are reported as parse errors.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	loc := ditchpen.LoadLocation(cfg.Device.TimeZone)

	session, connInfo, err := newDeviceSession(cfg.Device,
		device.WithOutput(func(msg string) { fmt.Fprintln(os.Stderr, msg) }),
	)
	if err != nil {
		return err
	}

	fmt.Printf("Ditchterm - Raw Notification Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications, unsubscribe := session.Subscribe(64)
	defer unsubscribe()

	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect(context.Background())

	for {
		select {
		case <-ctx.Done():
			stats := session.Stats()
			fmt.Printf("\n%s", stats.String())
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			fmt.Print(ditchpen.FormatNotification(n, loc))
		}
	}
}
