// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package run

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Format is a session export encoding
type Format string

// Export formats
const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// FormatFromPath picks the export format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".cbor":
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("unsupported export extension %q (use .json or .cbor)", filepath.Ext(path))
}

// Export is the serialized form of a session
type Export struct {
	Name            string             `json:"name" cbor:"name"`
	CreationDate    time.Time          `json:"creationDate" cbor:"creationDate"`
	EndTimestamp    *time.Time         `json:"endTimestamp" cbor:"endTimestamp"`
	DurationSeconds *float64           `json:"durationSeconds" cbor:"durationSeconds"`
	Settings        map[string]float64 `json:"settings" cbor:"settings"`
	Runs            []Run              `json:"runs" cbor:"runs"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Write encodes the export to w
func (e *Export) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case FormatCBOR:
		return cborEnc.NewEncoder(w).Encode(e)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// ReadExport decodes an export written by Export.Write
func ReadExport(r io.Reader, format Format) (*Export, error) {
	var e Export
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode JSON export: %w", err)
		}
	case FormatCBOR:
		if err := cborDec.NewDecoder(r).Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode CBOR export: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return &e, nil
}

// Export writes the session's current state to w
func (s *Session) Export(w io.Writer, format Format) error {
	return s.Snapshot().Write(w, format)
}
