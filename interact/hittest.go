// Package interact implements pointer interaction over a rendered frame:
// hover hit-testing, brush selection, and click resolution.
package interact

import (
	"math"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/geometry"
	"github.com/Readm/consensus_trace/render"
)

const (
	// HitThreshold is the exclusive pixel radius for hover and click hits.
	HitThreshold = 10.0
	// ClickSlop is the largest drag, in pixels, still treated as a click.
	ClickSlop = 5.0
	// ClickMatchWindowMs bounds the timestamp gap when tracing a clicked
	// shape back to its source event.
	ClickMatchWindowMs = 1000
)

// Scene is the snapshot interaction runs against: the visible shapes and
// the scales they were drawn with, plus the loaded events for click resolution.
type Scene struct {
	Arrows []*core.Arrow
	Points []*core.StateChangePoint
	Scales geometry.Scales
	Events []core.CanvasEvent
}

// SceneOf builds a Scene from the shapes a frame actually draws.
func SceneOf(st render.FrameState, events []core.CanvasEvent) Scene {
	return Scene{
		Arrows: render.VisibleArrows(st),
		Points: render.VisiblePoints(st),
		Scales: st.Scales,
		Events: events,
	}
}

// SegmentDistance returns the distance from (px,py) to the segment
// (x1,y1)-(x2,y2), measured to the nearest point on the segment.
func SegmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	l2 := dx*dx + dy*dy
	t := 0.0
	if l2 > 0 {
		t = ((px-x1)*dx + (py-y1)*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}

// HitTest returns the nearest visible shape strictly within HitThreshold of
// the plot-area point (x,y). Arrows are searched first; points only when no
// arrow is in range.
func HitTest(x, y float64, s Scene) core.Shape {
	sc := s.Scales
	best := HitThreshold
	var found core.Shape
	for _, a := range s.Arrows {
		y1, ok1 := sc.PlotY(a.FromNode)
		y2, ok2 := sc.PlotY(a.ToNode)
		if !ok1 || !ok2 {
			continue
		}
		d := SegmentDistance(x, y, sc.PlotX(a.SendMillis()), y1, sc.PlotX(a.RecvMillis()), y2)
		if d < best {
			best, found = d, a
		}
	}
	if found != nil {
		return found
	}
	for _, p := range s.Points {
		py, ok := sc.PlotY(p.Node)
		if !ok {
			continue
		}
		d := math.Hypot(x-sc.PlotX(core.Millis(p.Timestamp)), y-py)
		if d < best {
			best, found = d, p
		}
	}
	return found
}

// ResolveEvent traces a shape back to the loaded event it was derived from:
// same type, same node, timestamp within ClickMatchWindowMs. The closest
// timestamp wins; ties keep the earlier event.
func ResolveEvent(shape core.Shape, events []core.CanvasEvent) *core.CanvasEvent {
	var (
		types []string
		node  string
		at    float64
	)
	switch v := shape.(type) {
	case *core.StateChangePoint:
		if v == nil {
			return nil
		}
		types, node, at = []string{v.Type}, v.Node, core.Millis(v.Timestamp)
	case *core.Arrow:
		if v == nil {
			return nil
		}
		types, node, at = []string{v.Type, v.SourceType}, v.SourceNode, core.Millis(v.Timestamp)
	default:
		return nil
	}
	var best *core.CanvasEvent
	bestGap := math.Inf(1)
	for i := range events {
		e := &events[i]
		if e.NodeID != node || !typeIn(e.Type, types) {
			continue
		}
		gap := math.Abs(e.Millis() - at)
		if gap < ClickMatchWindowMs && gap < bestGap {
			best, bestGap = e, gap
		}
	}
	return best
}

func typeIn(t string, types []string) bool {
	for _, c := range types {
		if c != "" && c == t {
			return true
		}
	}
	return false
}
