// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ditchlabs/ditchterm/internal/terminal"
	"github.com/peterh/liner"
)

const defaultHistoryFile = ".ditchterm_history"

// runPlainTerminal reads commands from a liner prompt and runs them in order
func runPlainTerminal(app *terminalApp) error {
	app.console.OnOutput(func(msg string) {
		// the prompt already shows the command
		if strings.HasPrefix(msg, "> ") {
			return
		}
		fmt.Println(msg)
	})
	app.console.OnInformation(func(msg string) {
		fmt.Println(msg)
	})
	app.console.OnClear(func() {
		fmt.Print("\033[H\033[2J")
	})

	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	names := terminal.CommandNames()
	shell.SetCompleter(func(line string) (c []string) {
		for _, name := range names {
			if strings.HasPrefix(name, strings.ToLower(line)) {
				c = append(c, name)
			}
		}
		return
	})

	historyFile := cfg.Terminal.HistoryFile
	if historyFile == "" {
		historyFile = defaultHistoryFile
	}
	if f, err := os.Open(historyFile); err == nil {
		shell.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("Ditchterm - Terminal\n")
	fmt.Printf("Connection: %s\n", app.connInfo)
	fmt.Printf("Type \"help\" for commands, Ctrl-D to quit.\n\n")

	ctx := context.Background()
	for {
		input, err := shell.Prompt("> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			break
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)
		if input == "quit" || input == "exit" {
			break
		}
		app.term.Execute(ctx, input)
	}

	if f, err := os.Create(historyFile); err == nil {
		shell.WriteHistory(f)
		f.Close()
	} else {
		componentLog("terminal").WithError(err).Warn("could not write history")
	}
	return nil
}
