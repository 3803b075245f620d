// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package main

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const copyrightLine = "// Copyright (c) 2025 Ditch Labs"

// ============================================================
// Source headers
// ============================================================

func TestSourceHeaders(t *testing.T) {
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		header, err := readHeader(path)
		if err != nil {
			return err
		}
		if len(header) < 2 || !strings.HasPrefix(header[0], "// SPDX-License-Identifier: ") {
			t.Errorf("%s: missing SPDX line, got %q", path, header)
			return nil
		}
		if header[1] != copyrightLine {
			t.Errorf("%s: copyright = %q, want %q", path, header[1], copyrightLine)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// readHeader returns the first two lines after any build constraint
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 2 {
		line := scanner.Text()
		if len(lines) == 0 && (strings.HasPrefix(line, "//go:build") || line == "") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
