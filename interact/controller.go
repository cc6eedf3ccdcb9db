package interact

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/hooks"
	"github.com/Readm/consensus_trace/render"
)

// State is the brush state of the controller. Hover tracking is orthogonal
// and only runs while Idle.
type State int

const (
	Idle State = iota
	Brushing
)

func (s State) String() string {
	if s == Brushing {
		return "brushing"
	}
	return "idle"
}

// BrushRange is a committed brush selection in epoch milliseconds.
type BrushRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Outcome tells the caller what a pointer event changed.
type Outcome struct {
	// Redraw is set when the frame must be re-rendered.
	Redraw    bool
	Highlight core.Shape
	Brush     *render.Brush
	// Committed is set when a brush gesture ended as a range selection.
	Committed *BrushRange
	// Clicked is set when a gesture ended as a click; Shape and Selected
	// carry the hit and its source event, either of which may be nil.
	Clicked  bool
	Shape    core.Shape
	Selected *core.CanvasEvent
}

// Controller is the pointer state machine. Coordinates passed in are
// canvas-relative CSS pixels; margins are removed using the scene scales.
// A Controller is not safe for concurrent use.
type Controller struct {
	state     State
	startX    float64
	endX      float64
	highlight core.Shape
	broker    *hooks.PluginBroker
}

// NewController returns an idle controller emitting through broker, which may be nil.
func NewController(broker *hooks.PluginBroker) *Controller {
	return &Controller{broker: broker}
}

// State returns the brush state.
func (c *Controller) State() State { return c.state }

// Highlight returns the current hover target.
func (c *Controller) Highlight() core.Shape { return c.highlight }

// Brush returns the live brush extent in plot coordinates, or nil.
func (c *Controller) Brush() *render.Brush {
	if c.state != Brushing {
		return nil
	}
	return &render.Brush{X0: c.startX, X1: c.endX}
}

// Reset drops hover and brush state. Call it whenever the shapes are
// recomputed, since the highlight refers to shapes by identity.
func (c *Controller) Reset() {
	c.state = Idle
	c.highlight = nil
}

// PointerDown starts a brush gesture.
func (c *Controller) PointerDown(x, y float64, s Scene) Outcome {
	if c.state == Brushing {
		return Outcome{Brush: c.Brush(), Highlight: c.highlight}
	}
	px, _ := s.Scales.ToPlot(x, y)
	c.state = Brushing
	c.startX, c.endX = px, px
	c.setHighlight(nil)
	return Outcome{Redraw: true, Brush: c.Brush()}
}

// PointerMove extends an active brush or updates the hover target.
func (c *Controller) PointerMove(x, y float64, s Scene) Outcome {
	px, py := s.Scales.ToPlot(x, y)
	if c.state == Brushing {
		c.endX = px
		return Outcome{Redraw: true, Brush: c.Brush()}
	}
	hit := HitTest(px, py, s)
	changed := hit != c.highlight
	if changed {
		c.setHighlight(hit)
	}
	return Outcome{Redraw: changed, Highlight: hit}
}

// PointerUp ends a brush gesture: drags wider than ClickSlop commit a time
// range, shorter ones resolve as a click at (x,y).
func (c *Controller) PointerUp(x, y float64, s Scene) Outcome {
	if c.state != Brushing {
		return Outcome{Highlight: c.highlight}
	}
	px, py := s.Scales.ToPlot(x, y)
	c.endX = px
	c.state = Idle
	out := Outcome{Redraw: true}

	if math.Abs(c.endX-c.startX) > ClickSlop {
		lo, hi := math.Min(c.startX, c.endX), math.Max(c.startX, c.endX)
		r := &BrushRange{
			Start: int64(math.Floor(s.Scales.X.Invert(lo))),
			End:   int64(math.Floor(s.Scales.X.Invert(hi))),
		}
		out.Committed = r
		if err := c.broker.EmitBrushSelect(&hooks.BrushSelectContext{Start: r.Start, End: r.End}); err != nil {
			log.Warn().Err(err).Msg("interact: brush-select hook failed")
		}
		return out
	}

	out.Clicked = true
	out.Shape = HitTest(px, py, s)
	if out.Shape != nil {
		out.Selected = ResolveEvent(out.Shape, s.Events)
	}
	if err := c.broker.EmitEventSelect(&hooks.EventSelectContext{Shape: out.Shape, Event: out.Selected}); err != nil {
		log.Warn().Err(err).Msg("interact: event-select hook failed")
	}
	return out
}

// PointerLeave clears the hover target and aborts any brush without committing.
func (c *Controller) PointerLeave() Outcome {
	redraw := c.state == Brushing || c.highlight != nil
	c.state = Idle
	c.setHighlight(nil)
	return Outcome{Redraw: redraw}
}

func (c *Controller) setHighlight(shape core.Shape) {
	if c.highlight == shape {
		return
	}
	c.highlight = shape
	if err := c.broker.EmitHighlight(&hooks.HighlightContext{Shape: shape}); err != nil {
		log.Warn().Err(err).Msg("interact: highlight hook failed")
	}
}
