// Package viewport holds the pan and zoom transformations of the visible
// time window. Every operation is a pure function of the current window and
// the full data span.
package viewport

import (
	"fmt"
	"math"

	"github.com/Readm/consensus_trace/core"
)

// Op names a viewport transformation.
type Op string

const (
	PanLeft  Op = "panLeft"
	PanRight Op = "panRight"
	Widen    Op = "widen"
	Narrow   Op = "narrow"
)

const (
	PanFraction  = 0.1
	WidenZoom    = 1.5
	WidenRange   = 0.75
	NarrowZoom   = 0.75
	NarrowRange  = 1.5
	MaxZoom      = 10.0
	MinZoom      = 0.1
	DefaultZoom  = 1.0
	ShowAllSpan  = 30_000.0
	InitialRange = 10_000.0
)

// ParseOp validates an op name received from a control request.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case PanLeft, PanRight, Widen, Narrow:
		return op, nil
	}
	return "", fmt.Errorf("viewport: unknown op %q", s)
}

// Initial returns the window shown right after data lands: the whole span
// when it is at most 30s long, the first 10s otherwise.
func Initial(full core.TimeRange) core.Viewport {
	vp := core.Viewport{Start: full.Min, End: full.Max, ZoomLevel: DefaultZoom}
	if full.Span() > ShowAllSpan {
		vp.End = full.Min + InitialRange
	}
	return vp
}

// Apply returns vp transformed by op. Widen and narrow keep the window center
// fixed. Narrow never grows the window past the full data span; when the span
// is empty the growth is left unclamped.
func Apply(op Op, vp core.Viewport, full core.TimeRange) core.Viewport {
	if vp.ZoomLevel == 0 {
		vp.ZoomLevel = DefaultZoom
	}
	r := vp.Range()
	switch op {
	case PanLeft:
		d := r * PanFraction
		vp.Start -= d
		vp.End -= d
	case PanRight:
		d := r * PanFraction
		vp.Start += d
		vp.End += d
	case Widen:
		vp.ZoomLevel = math.Min(vp.ZoomLevel*WidenZoom, MaxZoom)
		vp = recenter(vp, r*WidenRange)
	case Narrow:
		vp.ZoomLevel = math.Max(vp.ZoomLevel*NarrowZoom, MinZoom)
		nr := r * NarrowRange
		if span := full.Span(); span > 0 && nr > span {
			nr = span
		}
		vp = recenter(vp, nr)
	}
	return vp
}

func recenter(vp core.Viewport, r float64) core.Viewport {
	c := vp.Center()
	vp.Start = c - r/2
	vp.End = c + r/2
	return vp
}
