// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// EncodeCommand creates a complete wire-formatted manual command frame.
// The payload is the command type followed by args. The CRC covers every byte
// from the command class through the end of the payload.
func EncodeCommand(commandType uint8, args []byte) []byte {
	payloadLen := 1 + len(args)

	frame := make([]byte, 0, FrameOverhead+payloadLen)
	frame = append(frame, SOF[:]...)
	frame = append(frame, ClassManualCommand)

	// Reserved for a device-side timestamp
	frame = append(frame, 0x00, 0x00, 0x00, 0x00)

	frame = binary.BigEndian.AppendUint32(frame, uint32(payloadLen))
	frame = append(frame, commandType)
	frame = append(frame, args...)

	crc := CalculateCRC(frame[MarkerSize:])
	frame = binary.BigEndian.AppendUint32(frame, crc)

	frame = append(frame, EOF[:]...)
	return frame
}

// Encode encodes a Command to wire format.
func (c Command) Encode() []byte {
	return EncodeCommand(c.Type, c.Args)
}

// FormatBytes renders frame bytes as space separated decimals, the way the
// terminal echoes sent commands.
func FormatBytes(b []byte) string {
	var s strings.Builder
	for i, v := range b {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%d", v)
	}
	return s.String()
}
