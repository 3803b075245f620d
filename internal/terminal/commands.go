// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
)

// maxFeedHz bounds the feed frequency
const maxFeedHz = 1000

type handlerFunc func(ctx context.Context, t *Terminal, name string, args []string) error

type command struct {
	Names       []string
	Usage       string
	Description string
	MinArgs     int
	MaxArgs     int // -1 = unbounded
	Invalid     func(name string) string
	Handler     handlerFunc
}

func (c *command) invalidMessage(name string) string {
	if c.Invalid != nil {
		return c.Invalid(name)
	}
	return "invalid command format, use: " + c.Usage
}

func fixedUsage(msg string) func(string) string {
	return func(string) string { return msg }
}

func ledUsage(name string) string {
	return fmt.Sprintf("invalid %s command, use: %s <R> <G> <B> <W>", strings.ToUpper(name), name)
}

func levelUsage(name string) string {
	return fmt.Sprintf("invalid %s command, use: %s <percent> <seconds>", name, name)
}

func flashUsage(name string) string {
	return fmt.Sprintf("invalid %s command, use: %s <seconds>", name, name)
}

var commands []*command
var commandIndex map[string]*command

func init() {
	commands = []*command{
		{Names: []string{"clear"}, Usage: "clear", Description: "clear the terminal", Handler: runClear},
		{Names: []string{"help"}, Usage: "help", Description: "list the commands", Handler: runHelp},
		{Names: []string{"connect"}, Usage: "connect", Description: "connect to a ditchpen", Handler: runConnect},
		{Names: []string{"disconnect"}, Usage: "disconnect", Description: "disconnect from the ditchpen", Handler: runDisconnect},
		{Names: []string{"pressurevalues"}, Usage: "pressurevalues", Description: "read the pressure sensors", Handler: runRead(ditchpen.StreamPressure)},
		{Names: []string{"accelvalues"}, Usage: "accelvalues", Description: "read the accelerometer", Handler: runRead(ditchpen.StreamAccel)},
		{Names: []string{"analogvalues"}, Usage: "analogvalues", Description: "read the analog inputs", Handler: runRead(ditchpen.StreamAnalog)},
		{Names: []string{"digitalvalues"}, Usage: "digitalvalues", Description: "read the digital inputs", Handler: runRead(ditchpen.StreamDigital)},
		{Names: []string{"rtcvalue"}, Usage: "rtcvalue", Description: "read the real-time clock", Handler: runRead(ditchpen.StreamRTC)},
		{Names: []string{"readnfc"}, Usage: "readnfc", Description: "read the NFC tag", Handler: runReadNFC},
		{
			Names: []string{"led1", "led2"}, Usage: "led1|led2 <R> <G> <B> <W>", Description: "set an LED color",
			MinArgs: 4, MaxArgs: 4, Invalid: ledUsage, Handler: runLED,
		},
		{
			Names: []string{"heater"}, Usage: "heater <pwm1|pwm2> <dutyCycle>", Description: "set a heater duty cycle",
			MinArgs: 2, MaxArgs: 2, Invalid: fixedUsage("invalid heater command, use: heater <pwm1/pwm2> <dutyCycle>"), Handler: runHeater,
		},
		{
			Names: []string{"dcdcenable"}, Usage: "dcdcenable <0|1>", Description: "switch the DC-DC converter",
			MinArgs: 1, MaxArgs: 1, Invalid: fixedUsage("invalid DCDCEnable command, use: dcdcenable <0/1>"), Handler: runDCDC,
		},
		{
			Names: []string{"save"}, Usage: "save -log|-term|-bleinfo <filename>", Description: "save a pane or the device information",
			MinArgs: 2, MaxArgs: 2, Invalid: fixedUsage("invalid command format, use: save -log <filename> or save -term <filename>"), Handler: runSave,
		},
		{
			Names: []string{"show"}, Usage: "show -devicename", Description: "show the connected device name",
			MinArgs: 0, MaxArgs: -1, Handler: runShow,
		},
		{
			Names: []string{"feed"}, Usage: "feed <frequency>", Description: "request pressure values periodically",
			MinArgs: 1, MaxArgs: 1, Invalid: fixedUsage("Invalid command format. Use: feed <frequency>"), Handler: runFeed,
		},
		{Names: []string{"stop"}, Usage: "stop", Description: "stop the pressure feed and write its CSV", Handler: runStop},
		{
			Names: []string{"charging", "batterylevel", "liquid"}, Usage: "charging|batterylevel|liquid <percent> <seconds>",
			Description: "show a level on the LEDs", MinArgs: 2, MaxArgs: 2, Invalid: levelUsage, Handler: runLevel,
		},
		{
			Names: []string{"update", "error"}, Usage: "update|error <seconds>", Description: "flash the LEDs white or red",
			MinArgs: 1, MaxArgs: 1, Invalid: flashUsage, Handler: runFlash,
		},
		{Names: []string{"stats"}, Usage: "stats", Description: "show link statistics", Handler: runStats},
		{
			Names: []string{"session"}, Usage: "session start <name> [kind=hz ...] | end | print | export <file.json|file.cbor>",
			Description: "record runs", MinArgs: 1, MaxArgs: -1, Handler: runSession,
		},
		{
			Names: []string{"run"}, Usage: "run start <name> | end", Description: "start or end a run",
			MinArgs: 1, MaxArgs: 2, Handler: runRun,
		},
	}

	commandIndex = make(map[string]*command)
	for _, c := range commands {
		for _, n := range c.Names {
			commandIndex[n] = c
		}
	}
}

func lookupCommand(name string) (*command, bool) {
	c, ok := commandIndex[name]
	return c, ok
}

// HelpText lists every command with its usage
func HelpText() string {
	var b strings.Builder
	b.WriteString("available commands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-52s %s\n", c.Usage, c.Description)
	}
	return b.String()
}

// CommandNames returns every command word, for completion
func CommandNames() []string {
	var names []string
	for _, c := range commands {
		names = append(names, c.Names...)
	}
	return names
}

//////////////////////////////////////////////////////////////
// Argument parsing
//////////////////////////////////////////////////////////////

func parseByte(s string) (byte, bool) {
	v, err := strconv.ParseUint(s, 10, 8)
	return byte(v), err == nil
}

func parseSeconds(s string) (time.Duration, bool) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false
	}
	return time.Duration(v) * time.Second, true
}

//////////////////////////////////////////////////////////////
// Handlers
//////////////////////////////////////////////////////////////

func runClear(ctx context.Context, t *Terminal, name string, args []string) error {
	t.console.Clear()
	return nil
}

func runHelp(ctx context.Context, t *Terminal, name string, args []string) error {
	for _, line := range strings.Split(strings.TrimRight(HelpText(), "\n"), "\n") {
		t.console.Output(line)
	}
	return nil
}

func runConnect(ctx context.Context, t *Terminal, name string, args []string) error {
	if err := t.dev.Connect(ctx); err != nil {
		return &reportedError{err: err}
	}
	return nil
}

func runDisconnect(ctx context.Context, t *Terminal, name string, args []string) error {
	if err := t.dev.Disconnect(ctx); err != nil {
		return &reportedError{err: err}
	}
	return nil
}

func runRead(kind ditchpen.StreamKind) handlerFunc {
	return func(ctx context.Context, t *Terminal, name string, args []string) error {
		cmd, err := ditchpen.ReadCommand(kind)
		if err != nil {
			return err
		}
		return t.dev.Send(ctx, cmd)
	}
}

func runReadNFC(ctx context.Context, t *Terminal, name string, args []string) error {
	return t.dev.Send(ctx, ditchpen.ReadNFCCommand())
}

func runLED(ctx context.Context, t *Terminal, name string, args []string) error {
	var color ditchpen.Color
	for i, arg := range args {
		v, ok := parseByte(arg)
		if !ok {
			return invalid(name, ledUsage(name))
		}
		color[i] = v
	}
	led := 1
	if name == "led2" {
		led = 2
	}
	cmd, err := ditchpen.LEDCommand(led, color)
	if err != nil {
		return err
	}
	return t.dev.Send(ctx, cmd)
}

func runHeater(ctx context.Context, t *Terminal, name string, args []string) error {
	msg := "invalid heater command, use: heater <pwm1/pwm2> <dutyCycle>"
	var pwm int
	switch args[0] {
	case "pwm1":
		pwm = 1
	case "pwm2":
		pwm = 2
	default:
		return invalid(name, msg)
	}
	duty, ok := parseByte(args[1])
	if !ok {
		return invalid(name, msg)
	}
	cmd, err := ditchpen.HeaterCommand(pwm, duty)
	if err != nil {
		return err
	}
	return t.dev.Send(ctx, cmd)
}

func runDCDC(ctx context.Context, t *Terminal, name string, args []string) error {
	switch args[0] {
	case "0":
		return t.dev.Send(ctx, ditchpen.DCDCEnableCommand(false))
	case "1":
		return t.dev.Send(ctx, ditchpen.DCDCEnableCommand(true))
	}
	return invalid(name, "invalid DCDCEnable command, use: dcdcenable <0/1>")
}

func runSave(ctx context.Context, t *Terminal, name string, args []string) error {
	option, fileName := args[0], args[1]
	if err := checkFileName(fileName); err != nil {
		return invalid(name, err.Error())
	}
	target := fileName + ".txt"

	switch option {
	case "-log":
		if _, err := writeText(t.exportDir, target, t.console.InformationText()); err != nil {
			return fmt.Errorf("failed to save information logs: %w", err)
		}
		t.console.Output("saved information logs to " + target)
	case "-term":
		if _, err := writeText(t.exportDir, target, t.console.TerminalText()); err != nil {
			return fmt.Errorf("failed to save terminal content: %w", err)
		}
		t.console.Output("saved terminal content to " + target)
	case "-bleinfo":
		info, err := t.dev.DeviceInfo(ctx)
		if errors.Is(err, device.ErrNotConnected) {
			return errors.New("no bluetooth device is connected")
		}
		if err != nil {
			return fmt.Errorf("failed to retrieve bluetooth device information: %w", err)
		}
		if _, err := writeText(t.exportDir, target, info); err != nil {
			return fmt.Errorf("failed to retrieve bluetooth device information: %w", err)
		}
		t.console.Output("saved bluetooth device information to " + target)
	default:
		return invalid(name, fmt.Sprintf("invalid option: %s, use -log to save logs, or -term to save terminal content", option))
	}
	return nil
}

func runShow(ctx context.Context, t *Terminal, name string, args []string) error {
	var option string
	if len(args) > 0 {
		option = args[0]
	}
	if option != "-devicename" {
		return invalid(name, fmt.Sprintf("invalid option: %s, use -devicename to show device name", option))
	}
	if dn := t.dev.DeviceName(); dn != "" {
		t.console.Output("device name: " + dn)
	} else {
		t.console.Output("no bluetooth device is connected")
	}
	return nil
}

func runFeed(ctx context.Context, t *Terminal, name string, args []string) error {
	hz, err := strconv.Atoi(args[0])
	if err != nil || hz <= 0 {
		return invalid(name, "Frequency must be a positive number.")
	}
	if hz > maxFeedHz {
		return invalid(name, fmt.Sprintf("Frequency must be at most %d Hz.", maxFeedHz))
	}

	t.feed.Start(t.ctx, hz)
	t.dev.SetFeedActive(true)
	t.console.Output(fmt.Sprintf("Pressure feed started at %d Hz.", hz))
	return nil
}

func runStop(ctx context.Context, t *Terminal, name string, args []string) error {
	if !t.feed.Stop() {
		t.console.Output("No pressure feed is currently active.")
		return nil
	}
	t.dev.SetFeedActive(false)

	_, err := writeExport(t.exportDir, t.feedFile, func(w io.Writer) error {
		return WriteCSV(w, t.dev.ExportPoints())
	})
	t.console.Output("Pressure feed stopped.")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", t.feedFile, err)
	}
	return nil
}

func runLevel(ctx context.Context, t *Terminal, name string, args []string) error {
	percent, err := strconv.Atoi(args[0])
	d, ok := parseSeconds(args[1])
	if err != nil || !ok {
		return invalid(name, levelUsage(name))
	}

	switch name {
	case "charging":
		return t.leds.Charging(ctx, percent, d)
	case "batterylevel":
		return t.leds.BatteryLevel(ctx, percent, d)
	default:
		return t.leds.Liquid(ctx, percent, d)
	}
}

func runFlash(ctx context.Context, t *Terminal, name string, args []string) error {
	d, ok := parseSeconds(args[0])
	if !ok {
		return invalid(name, flashUsage(name))
	}
	if name == "update" {
		t.leds.Update(d)
	} else {
		t.leds.Error(d)
	}
	return nil
}

func runStats(ctx context.Context, t *Terminal, name string, args []string) error {
	stats := t.dev.Stats()
	for _, line := range strings.Split(strings.TrimRight(stats.String(), "\n"), "\n") {
		t.console.Output(line)
	}
	return nil
}
