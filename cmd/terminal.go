// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ditchlabs/ditchterm/internal/logstore"
	"github.com/ditchlabs/ditchterm/internal/monitor"
	"github.com/ditchlabs/ditchterm/internal/terminal"
	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var plainMode bool

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Interactive terminal for a ditchpen device",
	Long: `Drive a ditchpen device from an interactive command line.

Type "help" for the list of commands. Commands run one at a time in the
order they were entered. Device notifications are decoded: pressure samples
feed the real time graph and every other PROC message is shown in the
information pane.

The full-screen interface is used when stdout is a terminal and
terminal.tui is enabled; --plain forces a line-oriented prompt.

When terminal.save_url is set, every terminal and information line is also
posted to a "ditchterm serve" log store.`,
	RunE: runTerminal,
}

func init() {
	rootCmd.AddCommand(terminalCmd)
	terminalCmd.Flags().BoolVar(&plainMode, "plain", false, "Use a line prompt instead of the full-screen interface")
}

// terminalApp holds everything a terminal front end drives
type terminalApp struct {
	console  *terminal.Console
	session  *device.Session
	term     *terminal.Terminal
	connInfo string

	mirror *logstore.Client
	cancel context.CancelFunc
}

func newTerminalApp() (*terminalApp, error) {
	console := terminal.NewConsole(0)
	loc := ditchpen.LoadLocation(cfg.Device.TimeZone)

	session, connInfo, err := newDeviceSession(cfg.Device,
		device.WithOutput(console.Output),
		device.WithInformation(console.Information),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &terminalApp{
		console:  console,
		session:  session,
		connInfo: connInfo,
		cancel:   cancel,
	}

	opts := []terminal.Option{
		terminal.WithLogger(componentLog("terminal")),
		terminal.WithLocation(loc),
		terminal.WithExportDir(cfg.Terminal.ExportDir),
		terminal.WithFeedFile(cfg.Terminal.FeedFile),
	}

	if cfg.Monitor.Enabled {
		mon := monitor.NewMonitor(componentLog("monitor"))
		mon.WatchDevice(session)
		mon.StartMetricsServer(ctx, cfg.Monitor.MetricsPort)
		mon.StartRuntimeMonitor(ctx, 30*time.Second)
		opts = append(opts, terminal.WithObserver(mon))
	}

	if cfg.Terminal.SaveURL != "" {
		app.mirror = logstore.NewClient(cfg.Terminal.SaveURL, componentLog("logstore"))
		console.OnOutput(app.mirror.Mirror(logstore.KindTerminal))
		console.OnInformation(app.mirror.Mirror(logstore.KindInformation))
	}

	app.term = terminal.New(session, console, opts...)
	return app, nil
}

// Close stops the terminal and disconnects quietly
func (a *terminalApp) Close() {
	a.term.Close()
	if a.session.State() == device.StateConnected {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.session.Disconnect(ctx)
		cancel()
	}
	if a.mirror != nil {
		a.mirror.Close()
	}
	a.cancel()
}

func runTerminal(cmd *cobra.Command, args []string) error {
	app, err := newTerminalApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if plainMode || !cfg.Terminal.TUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlainTerminal(app)
	}
	// the alternate screen owns the terminal
	if cfg.Log.Output != "file" {
		logger.SetOutput(io.Discard)
	}
	if err := runTerminalTUI(app); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
