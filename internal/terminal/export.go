// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
)

// WriteCSV writes the export buffer as "Time,Value" rows
func WriteCSV(w io.Writer, points []device.ExportPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time", "Value"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Time, ditchpen.FormatNumber(p.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// checkFileName rejects names that would leave the export directory
func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// writeExport creates dir/name and fills it with write
func writeExport(dir, name string, write func(io.Writer) error) (string, error) {
	if err := checkFileName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func writeText(dir, name, text string) (string, error) {
	return writeExport(dir, name, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}
