// Package render turns derived trace geometry into a list of draw commands.
// Render is a pure function of FrameState; pixel output is left to sinks.
package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/samber/lo"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/geometry"
)

// Drawing constants in CSS pixels.
const (
	ArrowWidth      = 2
	ArrowHeadSize   = 4
	arrowHeadAngle  = math.Pi / 3
	PointRadius     = 6
	RingWidth       = 1.5
	InnerDotRadius  = 2.5
	LabelFontSize   = 10
	LaneLabelOffset = 10
	LaneLabelRunes  = 6
	markerRow1      = 12
	markerRow2      = 24
)

var markerDash = []float64{5, 4}

// TableMatchWindowMs is how close an externally selected event must be to
// a shape for the shape to be drawn as selected.
const TableMatchWindowMs = 50

// Brush is an in-progress drag in plot-area x coordinates.
type Brush struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
}

// FrameState is everything a frame depends on.
type FrameState struct {
	Arrows []*core.Arrow
	Points []*core.StateChangePoint
	Scales geometry.Scales
	// SelectedEvents holds arrow labels (see MessageKinds).
	SelectedEvents []string
	SelectedSteps  []string
	// Highlight is compared by identity against Arrows and Points.
	Highlight     core.Shape
	TableSelected *core.CanvasEvent
	Brush         *Brush
}

// Render produces the frame as draw commands: background, proposal markers,
// lanes, arrows, points, brush.
func Render(st FrameState) []Command {
	sc := st.Scales
	m := sc.Margins
	cmds := make([]Command, 0, 16+len(st.Arrows)*2+len(st.Points))
	cmds = append(cmds, FillRect{
		Layer: LayerBackground,
		W:     sc.Size.Width, H: sc.Size.Height,
		Color: Background,
	})

	points := VisiblePoints(st)
	arrows := VisibleArrows(st)

	for _, p := range ProposalMarkers(points) {
		x := sc.PlotX(core.Millis(p.Timestamp)) + m.Left
		cmds = append(cmds, Line{
			Layer: LayerMarker,
			X1:    x, Y1: m.Top, X2: x, Y2: m.Top + sc.InnerHeight,
			Width: 1, Color: MarkerColor, Dash: markerDash,
		})
		h, ok := p.BlockHeight()
		if !ok {
			continue
		}
		ms := p.Timestamp.UTC().Nanosecond() / 1e6
		cmds = append(cmds,
			markerLabel(x, m.Top+sc.InnerHeight+markerRow1, strconv.FormatInt(h, 10)),
			markerLabel(x, m.Top+sc.InnerHeight+markerRow2, fmt.Sprintf("%dms", ms)),
		)
	}

	for _, node := range sc.Y.Keys() {
		y, _ := sc.PlotY(node)
		y += m.Top
		cmds = append(cmds,
			Line{Layer: LayerLane, X1: m.Left, Y1: y, X2: m.Left + sc.InnerWidth, Y2: y, Width: 1, Color: LaneColor},
			Text{
				Layer: LayerLane, X: m.Left - LaneLabelOffset, Y: y, Text: ShortID(node),
				Color: LaneLabelColor, Size: LabelFontSize, Align: AlignRight, Baseline: BaselineMiddle,
			},
		)
	}

	for _, a := range arrows {
		cmds = append(cmds, arrowCommands(st, a)...)
	}
	for _, p := range points {
		cmds = append(cmds, pointCommands(st, p)...)
	}

	if st.Brush != nil {
		x0, x1 := math.Min(st.Brush.X0, st.Brush.X1), math.Max(st.Brush.X0, st.Brush.X1)
		cmds = append(cmds, FillRect{
			Layer: LayerBrush,
			X:     m.Left + x0, Y: m.Top, W: x1 - x0, H: sc.InnerHeight,
			Color: BrushColor,
		})
	}
	return cmds
}

func markerLabel(x, y float64, s string) Text {
	return Text{
		Layer: LayerMarker, X: x, Y: y, Text: s, Color: MarkerText,
		Size: LabelFontSize, Align: AlignCenter, Baseline: BaselineTop,
	}
}

// ShortID truncates a node id for lane labels.
func ShortID(id string) string {
	r := []rune(id)
	if len(r) <= LaneLabelRunes {
		return id
	}
	return string(r[:LaneLabelRunes])
}

// VisibleArrows returns arrows of a selected type that overlap the x domain.
func VisibleArrows(st FrameState) []*core.Arrow {
	types := selectedTypes(st.SelectedEvents)
	return lo.Filter(st.Arrows, func(a *core.Arrow, _ int) bool {
		if _, ok := types[a.Type]; !ok {
			return false
		}
		return st.Scales.X.Overlaps(a.SendMillis(), a.RecvMillis())
	})
}

// VisiblePoints returns points of a selected step type inside the x domain.
func VisiblePoints(st FrameState) []*core.StateChangePoint {
	return lo.Filter(st.Points, func(p *core.StateChangePoint, _ int) bool {
		return lo.Contains(st.SelectedSteps, p.Type) && st.Scales.X.Contains(core.Millis(p.Timestamp))
	})
}

func selectedTypes(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(MessageKinds))
	for _, k := range MessageKinds {
		if lo.Contains(labels, k.Label) {
			set[k.Type] = struct{}{}
		}
	}
	return set
}

// ProposalMarkers returns every other our-turn proposal point, in input order.
func ProposalMarkers(points []*core.StateChangePoint) []*core.StateChangePoint {
	proposals := lo.Filter(points, func(p *core.StateChangePoint, _ int) bool {
		return p.IsOurTurnProposal()
	})
	return lo.Filter(proposals, func(_ *core.StateChangePoint, i int) bool {
		return i%2 == 0
	})
}

func arrowCommands(st FrameState, a *core.Arrow) []Command {
	sc := st.Scales
	m := sc.Margins
	y1, ok1 := sc.PlotY(a.FromNode)
	y2, ok2 := sc.PlotY(a.ToNode)
	if !ok1 || !ok2 {
		return nil
	}
	x1 := sc.PlotX(a.SendMillis()) + m.Left
	x2 := sc.PlotX(a.RecvMillis()) + m.Left
	y1 += m.Top
	y2 += m.Top

	c := ArrowColor(a.Type)
	switch {
	case st.Highlight != nil && st.Highlight == core.Shape(a):
		c = HoverColor
	case TableSelectsArrow(st.TableSelected, a):
		c = TableColor
	}

	cmds := []Command{Line{
		Layer: LayerArrow,
		X1:    x1, Y1: y1, X2: x2, Y2: y2,
		Width: ArrowWidth,
		Color: c,
		Gradient: &Gradient{
			X0: x2, Y0: y2, X1: x1, Y1: y1,
			From: c, To: c.Transparent(),
		},
	}}
	if head, ok := ArrowHead(x1, y1, x2, y2); ok {
		cmds = append(cmds, Polygon{Layer: LayerArrow, Points: head[:], Color: c})
	}
	return cmds
}

// ArrowHead returns the triangle at (x2,y2) for a segment of length >= 1.
func ArrowHead(x1, y1, x2, y2 float64) ([3]Point, bool) {
	dx, dy := x2-x1, y2-y1
	l := math.Hypot(dx, dy)
	if l < 1 {
		return [3]Point{}, false
	}
	ux, uy := dx/l, dy/l
	s := float64(ArrowHeadSize)
	cos, sin := math.Cos(arrowHeadAngle), math.Sin(arrowHeadAngle)
	bx, by := x2-ux*s, y2-uy*s
	return [3]Point{
		{X: x2, Y: y2},
		{X: bx + (-ux*cos-uy*sin)*s, Y: by + (ux*sin-uy*cos)*s},
		{X: bx + (-ux*cos+uy*sin)*s, Y: by + (-ux*sin-uy*cos)*s},
	}, true
}

func pointCommands(st FrameState, p *core.StateChangePoint) []Command {
	sc := st.Scales
	cy, ok := sc.PlotY(p.Node)
	if !ok {
		return nil
	}
	cx := sc.PlotX(core.Millis(p.Timestamp)) + sc.Margins.Left
	cy += sc.Margins.Top

	c := StepColor(p.Type)
	switch {
	case st.Highlight != nil && st.Highlight == core.Shape(p):
		c = HoverColor
	case TableSelectsPoint(st.TableSelected, p):
		c = TableColor
	}

	if p.IsOurTurnProposal() {
		return []Command{
			Circle{Layer: LayerPoint, X: cx, Y: cy, R: PointRadius, Color: c, StrokeWidth: RingWidth},
			Circle{Layer: LayerPoint, X: cx, Y: cy, R: InnerDotRadius, Color: c, Filled: true},
		}
	}
	return []Command{Circle{Layer: LayerPoint, X: cx, Y: cy, R: PointRadius, Color: c, Filled: true}}
}

// TableSelectsArrow reports whether the selected event corresponds to a.
func TableSelectsArrow(sel *core.CanvasEvent, a *core.Arrow) bool {
	if sel == nil || (sel.Type != a.Type && sel.Type != a.SourceType) {
		return false
	}
	return math.Abs(sel.Millis()-core.Millis(a.Timestamp)) < TableMatchWindowMs
}

// TableSelectsPoint reports whether the selected event corresponds to p.
func TableSelectsPoint(sel *core.CanvasEvent, p *core.StateChangePoint) bool {
	if sel == nil || sel.Type != p.Type || sel.NodeID != p.Node {
		return false
	}
	return math.Abs(sel.Millis()-core.Millis(p.Timestamp)) < TableMatchWindowMs
}
