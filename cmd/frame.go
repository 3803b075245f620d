// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/spf13/cobra"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Encode or decode manual command frames offline",
	Long: `Build the exact bytes a command sends, or check a captured frame.

Examples:
  ditchterm frame encode led1 255 0 0 0
  ditchterm frame encode heater pwm2 128
  ditchterm frame encode pressurevalues
  ditchterm frame decode "F4 3F F2 1F 0E 00 00 00 00 00 00 00 01 06 ..."`,
}

var frameEncodeCmd = &cobra.Command{
	Use:   "encode <command> [args...]",
	Short: "Print the frame for a command",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := commandFromArgs(args[0], args[1:])
		if err != nil {
			return err
		}
		frame := c.Encode()
		fmt.Printf("Command: %s (0x%02X)\n", ditchpen.FormatCommandType(c.Type), c.Type)
		fmt.Printf("Length:  %d bytes\n", len(frame))
		fmt.Printf("Hex:     % X\n", frame)
		fmt.Printf("Bytes:   %s\n", ditchpen.FormatBytes(frame))
		return nil
	},
}

var frameDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Validate and describe a captured frame",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseHex(strings.Join(args, ""))
		if err != nil {
			return err
		}
		f, err := ditchpen.DecodeFrame(data)
		if err != nil {
			return err
		}
		fmt.Printf("Class:     0x%02X\n", f.Class)
		fmt.Printf("Timestamp: %d\n", f.Timestamp)
		fmt.Printf("Length:    %d\n", f.Length)
		fmt.Printf("Command:   %s (0x%02X)\n", ditchpen.FormatCommandType(f.Type()), f.Type())
		fmt.Printf("Args:      %s\n", ditchpen.FormatBytes(f.Args()))
		fmt.Printf("CRC:       0x%08X (valid)\n", f.CRC)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(frameCmd)
	frameCmd.AddCommand(frameEncodeCmd)
	frameCmd.AddCommand(frameDecodeCmd)
}

// parseHex accepts hex with optional spaces, colons or 0x prefixes
func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.NewReplacer(" ", "", ":", "", ",", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

// commandFromArgs builds a command from terminal-style arguments
func commandFromArgs(name string, args []string) (ditchpen.Command, error) {
	name = strings.ToLower(name)
	need := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: frame encode %s", usage)
		}
		return nil
	}

	switch name {
	case "led1", "led2":
		if err := need(4, name+" <R> <G> <B> <W>"); err != nil {
			return ditchpen.Command{}, err
		}
		var c ditchpen.Color
		for i, a := range args {
			v, err := parseFrameByte(a)
			if err != nil {
				return ditchpen.Command{}, err
			}
			c[i] = v
		}
		led := 1
		if name == "led2" {
			led = 2
		}
		return ditchpen.LEDCommand(led, c)

	case "heater":
		if err := need(2, "heater <pwm1/pwm2> <dutyCycle>"); err != nil {
			return ditchpen.Command{}, err
		}
		duty, err := parseFrameByte(args[1])
		if err != nil {
			return ditchpen.Command{}, err
		}
		switch strings.ToLower(args[0]) {
		case "pwm1":
			return ditchpen.HeaterCommand(1, duty)
		case "pwm2":
			return ditchpen.HeaterCommand(2, duty)
		}
		return ditchpen.Command{}, fmt.Errorf("invalid heater output %q (use pwm1 or pwm2)", args[0])

	case "dcdcenable":
		if err := need(1, "dcdcenable <0/1>"); err != nil {
			return ditchpen.Command{}, err
		}
		switch args[0] {
		case "0":
			return ditchpen.DCDCEnableCommand(false), nil
		case "1":
			return ditchpen.DCDCEnableCommand(true), nil
		}
		return ditchpen.Command{}, fmt.Errorf("invalid DCDCEnable value %q (use 0 or 1)", args[0])

	case "readnfc":
		return ditchpen.ReadNFCCommand(), need(0, "readnfc")
	}

	for _, kind := range ditchpen.StreamKinds {
		if name == readCommandName(kind) {
			if err := need(0, name); err != nil {
				return ditchpen.Command{}, err
			}
			return ditchpen.ReadCommand(kind)
		}
	}
	return ditchpen.Command{}, fmt.Errorf("unknown command %q", name)
}

func readCommandName(kind ditchpen.StreamKind) string {
	if kind == ditchpen.StreamRTC {
		return "rtcvalue"
	}
	return string(kind) + "values"
}

func parseFrameByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte value %q (0-255)", s)
	}
	return byte(v), nil
}
