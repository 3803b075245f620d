// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package device

import (
	"errors"

	"tinygo.org/x/bluetooth"
)

func writeCharacteristic(ch bluetooth.DeviceCharacteristic, p []byte) (int, error) {
	return ch.Write(p)
}

func readCharacteristic(ch bluetooth.DeviceCharacteristic, buf []byte) (int, error) {
	return 0, errors.New("characteristic reads are not supported on macOS")
}
