// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs
//
// Ditchterm - Ditchpen Device Terminal
//
// A CLI tool for driving ditchpen devices over BLE, serial or WebSocket:
// manual commands, decoded notifications, run recording and a log store.

package main

import (
	"os"

	_ "time/tzdata"

	"github.com/ditchlabs/ditchterm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
