// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package terminal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ditchlabs/ditchterm/pkg/device"
	"github.com/ditchlabs/ditchterm/pkg/ditchpen"
)

// GraphWindow is how far back the pressure graph reaches
const GraphWindow = 30 * time.Second

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Graph is a rendered view of recent pressure samples
type Graph struct {
	Sparkline string
	Last      float64
	Min       float64
	Max       float64
	Samples   int
}

// RealTime returns the latest value label
func (g Graph) RealTime() string {
	return fmt.Sprintf("Real time: %s Pa", ditchpen.FormatNumber(g.Last))
}

// RenderGraph builds a sparkline of the samples taken within window before now,
// keeping at most width of the newest ones. ok is false when there are none.
func RenderGraph(points []device.DataPoint, now time.Time, window time.Duration, width int) (Graph, bool) {
	cutoff := now.Add(-window)
	var recent []float64
	for _, p := range points {
		// ±Inf and NaN have no place on the scale
		if p.Time.Before(cutoff) || math.IsInf(p.Value, 0) || math.IsNaN(p.Value) {
			continue
		}
		recent = append(recent, p.Value)
	}
	if len(recent) == 0 || width <= 0 {
		return Graph{}, false
	}
	if len(recent) > width {
		recent = recent[len(recent)-width:]
	}

	g := Graph{Last: recent[len(recent)-1], Min: recent[0], Max: recent[0], Samples: len(recent)}
	for _, v := range recent {
		g.Min = min(g.Min, v)
		g.Max = max(g.Max, v)
	}

	var b strings.Builder
	// halved so the span stays finite for any pair of finite samples
	halfSpan := g.Max/2 - g.Min/2
	top := len(sparkRunes) - 1
	for _, v := range recent {
		idx := top / 2
		if halfSpan > 0 {
			idx = int((v/2 - g.Min/2) / halfSpan * float64(top))
			idx = min(max(idx, 0), top)
		}
		b.WriteRune(sparkRunes[idx])
	}
	g.Sparkline = b.String()
	return g, true
}
