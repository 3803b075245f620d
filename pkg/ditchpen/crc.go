// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import "hash/crc32"

// CRC32 is an incremental CRC-32 (IEEE 802.3, reflected polynomial 0xEDB88320).
// The zero value is ready to use and matches zlib/gzip output for the same bytes.
type CRC32 struct {
	crc uint32
}

// Push folds one byte into the running checksum.
func (c *CRC32) Push(b byte) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, []byte{b})
}

// Write folds p into the running checksum. It never fails.
func (c *CRC32) Write(p []byte) (int, error) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p)
	return len(p), nil
}

// Get returns the finalized checksum without changing state.
func (c *CRC32) Get() uint32 {
	return c.crc
}

// Reset clears the running state.
func (c *CRC32) Reset() {
	c.crc = 0
}

// CalculateCRC computes the CRC-32 of data one byte at a time.
func CalculateCRC(data []byte) uint32 {
	var c CRC32
	for _, b := range data {
		c.Push(b)
	}
	return c.Get()
}
