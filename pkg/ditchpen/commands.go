// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import "fmt"

// Command is a manual command ready for framing.
type Command struct {
	Type uint8
	Args []byte
}

// Command builder functions create Command values with the argument layout
// the firmware expects.

// Color is an LED color as R, G, B, W channel values.
type Color [4]byte

// LED colors used by the terminal's status patterns. The channel order follows the
// firmware, so "green" is not the same byte layout as an RGB green.
var (
	ColorOff    = Color{0, 0, 0, 0}
	ColorGreen  = Color{0, 0, 255, 0}
	ColorYellow = Color{255, 0, 255, 0}
	ColorRed    = Color{255, 0, 0, 0}
	ColorWhite  = Color{255, 255, 255, 0}
)

// LEDCommand creates an LED1 or LED2 command. led must be 1 or 2.
func LEDCommand(led int, c Color) (Command, error) {
	switch led {
	case 1:
		return Command{Type: CmdLED1, Args: c[:]}, nil
	case 2:
		return Command{Type: CmdLED2, Args: c[:]}, nil
	}
	return Command{}, fmt.Errorf("invalid LED %d (use 1 or 2)", led)
}

// HeaterCommand creates a heater PWM duty cycle command. pwm must be 1 or 2.
func HeaterCommand(pwm int, duty uint8) (Command, error) {
	switch pwm {
	case 1:
		return Command{Type: CmdHeaterPWM1, Args: []byte{duty}}, nil
	case 2:
		return Command{Type: CmdHeaterPWM2, Args: []byte{duty}}, nil
	}
	return Command{}, fmt.Errorf("invalid heater PWM %d (use 1 or 2)", pwm)
}

// DCDCEnableCommand switches the DC-DC converter on or off.
func DCDCEnableCommand(on bool) Command {
	var v byte
	if on {
		v = 1
	}
	return Command{Type: CmdDCDCEnable, Args: []byte{v}}
}

// ReadCommand requests one reading of a sensor group.
func ReadCommand(kind StreamKind) (Command, error) {
	switch kind {
	case StreamPressure:
		return Command{Type: CmdPressureValues}, nil
	case StreamAccel:
		return Command{Type: CmdAccelValues}, nil
	case StreamAnalog:
		return Command{Type: CmdAnalogValues}, nil
	case StreamDigital:
		return Command{Type: CmdDigitalValues}, nil
	case StreamRTC:
		return Command{Type: CmdRTCValue}, nil
	}
	return Command{}, fmt.Errorf("unknown stream kind %q", kind)
}

// ReadNFCCommand asks the device to read its NFC tag.
func ReadNFCCommand() Command {
	return Command{Type: CmdReadNFC}
}

// StreamKind names one measurement stream of the device.
type StreamKind string

// Stream kinds
const (
	StreamPressure StreamKind = "pressure"
	StreamAccel    StreamKind = "accel"
	StreamAnalog   StreamKind = "analog"
	StreamDigital  StreamKind = "digital"
	StreamRTC      StreamKind = "rtc"
)

// StreamKinds lists every stream kind in display order.
var StreamKinds = []StreamKind{StreamPressure, StreamAccel, StreamAnalog, StreamDigital, StreamRTC}

// ParseStreamKind validates a stream kind name.
func ParseStreamKind(s string) (StreamKind, error) {
	for _, k := range StreamKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown stream kind %q", s)
}

// FormatCommandType returns the human-readable name for a command type
func FormatCommandType(t uint8) string {
	switch t {
	case CmdLED1:
		return "LED1"
	case CmdLED2:
		return "LED2"
	case CmdHeaterPWM1:
		return "HEATER_PWM1"
	case CmdHeaterPWM2:
		return "HEATER_PWM2"
	case CmdDCDCEnable:
		return "DCDC_ENABLE"
	case CmdPressureValues:
		return "PRESSURE_VALUES"
	case CmdAccelValues:
		return "ACCEL_VALUES"
	case CmdAnalogValues:
		return "ANALOG_VALUES"
	case CmdDigitalValues:
		return "DIGITAL_VALUES"
	case CmdRTCValue:
		return "RTC_VALUE"
	case CmdReadNFC:
		return "READ_NFC"
	default:
		return "UNKNOWN"
	}
}
