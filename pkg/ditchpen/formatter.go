// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Ditch Labs

package ditchpen

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LoadLocation resolves the zone used for wall clock timestamps, falling back to
// UTC when the name is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatTimestamp formats t as a 24-hour hour:minute:second wall clock in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// FormatInformation renders a generic (non-pressure) notification as one log line:
//
//	(<timestamp>) [<PROC>]: Data: <values>
//
// A scalar Result prints as-is, a numeric array as a comma separated list and an
// array of objects as "key: value" pairs joined by ", " with objects joined by " | ".
// The second result is false when the Result has nothing printable. A Result of
// 0 is a reading and prints; false and "" do not.
func FormatInformation(n *Notification, timestamp string) (string, bool) {
	result, ok := n.Result()
	if !ok || result == nil {
		return "", false
	}

	prefix := fmt.Sprintf("(%s) [%s]: Data: ", timestamp, n.Proc())

	switch val := result.(type) {
	case float64:
		return prefix + FormatNumber(val) + " ", true

	case []any:
		if len(val) == 0 {
			return "", false
		}
		switch val[0].(type) {
		case float64:
			nums := numbers(val)
			if len(nums) == 0 {
				return "", false
			}
			parts := make([]string, len(nums))
			for i, f := range nums {
				parts[i] = FormatNumber(f)
			}
			return prefix + strings.Join(parts, ", ") + " ", true

		case Object, []any:
			descriptions := make([]string, 0, len(val))
			for _, e := range val {
				desc, ok := describeEntries(e)
				if !ok {
					return "", false
				}
				descriptions = append(descriptions, desc)
			}
			return prefix + strings.Join(descriptions, " | "), true
		}
	}

	return "", false
}

// describeEntries renders the enumerable entries of a value as "key: value" pairs.
// Object keys follow property enumeration order: array-index keys ascending,
// then the rest in document order. null has no entries and cannot be described.
func describeEntries(v any) (string, bool) {
	var pairs []string
	switch val := v.(type) {
	case nil:
		return "", false
	case Object:
		for _, f := range enumerationOrder(val) {
			pairs = append(pairs, fmt.Sprintf("%s: %s", f.Key, FormatValue(f.Value)))
		}
	case []any:
		for i, e := range val {
			pairs = append(pairs, fmt.Sprintf("%d: %s", i, FormatValue(e)))
		}
	case string:
		for i, r := range []rune(val) {
			pairs = append(pairs, fmt.Sprintf("%d: %c", i, r))
		}
	}
	return strings.Join(pairs, ", "), true
}

// FormatNotification formats a notification for raw logs
func FormatNotification(n *Notification, loc *time.Location) string {
	timestamp := n.timestamp.In(locOrUTC(loc)).Format("15:04:05.000")
	kind := "DATA"
	if n.IsPressure() {
		kind = "PRESSURE"
	}

	result := fmt.Sprintf("[%s] %s %s\n", timestamp, kind, n.Proc())
	if v, ok := n.Result(); ok {
		result += fmt.Sprintf("  Result: %s\n", FormatValue(v))
	}
	if n.IsPressure() {
		if p, ok := n.PressureValue(); ok {
			result += fmt.Sprintf("  Sample: %s Pa\n", FormatNumber(p))
		}
	}
	return result
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// enumerationOrder returns the fields with array-index keys first, ascending
func enumerationOrder(o Object) []Field {
	var indexed, named []Field
	for _, f := range o {
		if _, ok := arrayIndex(f.Key); ok {
			indexed = append(indexed, f)
		} else {
			named = append(named, f)
		}
	}
	if len(indexed) == 0 {
		return o
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		a, _ := arrayIndex(indexed[i].Key)
		b, _ := arrayIndex(indexed[j].Key)
		return a < b
	})
	return append(indexed, named...)
}

// arrayIndex reports whether key is a canonical array index ("0", "7", not "07")
func arrayIndex(key string) (uint32, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	v, err := strconv.ParseUint(key, 10, 32)
	if err != nil || v == math.MaxUint32 {
		return 0, false
	}
	return uint32(v), true
}
