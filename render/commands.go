package render

import "encoding/json"

// Layer tags a command with the frame element it belongs to.
type Layer string

const (
	LayerBackground Layer = "background"
	LayerMarker     Layer = "marker"
	LayerLane       Layer = "lane"
	LayerArrow      Layer = "arrow"
	LayerPoint      Layer = "point"
	LayerBrush      Layer = "brush"
)

// Command is one drawing instruction in canvas (CSS pixel) coordinates.
// Sinks replay commands in order.
type Command interface {
	Op() string
	On() Layer
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FillRect fills an axis-aligned rectangle.
type FillRect struct {
	Layer Layer   `json:"layer"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Color Color   `json:"color"`
}

// Gradient is a linear color ramp from (X0,Y0) to (X1,Y1).
type Gradient struct {
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	From Color   `json:"from"`
	To   Color   `json:"to"`
}

// At returns the gradient color at the projection of (x,y).
func (g *Gradient) At(x, y float64) Color {
	dx, dy := g.X1-g.X0, g.Y1-g.Y0
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return g.From
	}
	return g.From.Lerp(g.To, ((x-g.X0)*dx+(y-g.Y0)*dy)/l2)
}

// Line strokes a segment, optionally dashed or gradient-filled.
type Line struct {
	Layer    Layer     `json:"layer"`
	X1       float64   `json:"x1"`
	Y1       float64   `json:"y1"`
	X2       float64   `json:"x2"`
	Y2       float64   `json:"y2"`
	Width    float64   `json:"width"`
	Color    Color     `json:"color"`
	Dash     []float64 `json:"dash,omitempty"`
	Gradient *Gradient `json:"gradient,omitempty"`
}

// Polygon fills a closed path.
type Polygon struct {
	Layer  Layer   `json:"layer"`
	Points []Point `json:"points"`
	Color  Color   `json:"color"`
}

// Circle fills or strokes a circle.
type Circle struct {
	Layer       Layer   `json:"layer"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	R           float64 `json:"r"`
	Color       Color   `json:"color"`
	Filled      bool    `json:"filled"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

// Text alignment values, matching the canvas API.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"

	BaselineTop    = "top"
	BaselineMiddle = "middle"
)

// Text draws a label anchored at (X,Y).
type Text struct {
	Layer    Layer   `json:"layer"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text"`
	Color    Color   `json:"color"`
	Size     float64 `json:"size"`
	Align    string  `json:"align"`
	Baseline string  `json:"baseline"`
}

func (c FillRect) Op() string { return "fillRect" }
func (c Line) Op() string     { return "line" }
func (c Polygon) Op() string  { return "polygon" }
func (c Circle) Op() string   { return "circle" }
func (c Text) Op() string     { return "text" }

func (c FillRect) On() Layer { return c.Layer }
func (c Line) On() Layer     { return c.Layer }
func (c Polygon) On() Layer  { return c.Layer }
func (c Circle) On() Layer   { return c.Layer }
func (c Text) On() Layer     { return c.Layer }

// The JSON form carries an "op" discriminator for browser sinks.

func (c FillRect) MarshalJSON() ([]byte, error) {
	type alias FillRect
	return json.Marshal(struct {
		Op string `json:"op"`
		alias
	}{c.Op(), alias(c)})
}

func (c Line) MarshalJSON() ([]byte, error) {
	type alias Line
	return json.Marshal(struct {
		Op string `json:"op"`
		alias
	}{c.Op(), alias(c)})
}

func (c Polygon) MarshalJSON() ([]byte, error) {
	type alias Polygon
	return json.Marshal(struct {
		Op string `json:"op"`
		alias
	}{c.Op(), alias(c)})
}

func (c Circle) MarshalJSON() ([]byte, error) {
	type alias Circle
	return json.Marshal(struct {
		Op string `json:"op"`
		alias
	}{c.Op(), alias(c)})
}

func (c Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Op string `json:"op"`
		alias
	}{c.Op(), alias(c)})
}

// CountLayer returns how many commands belong to layer.
func CountLayer(cmds []Command, layer Layer) int {
	n := 0
	for _, c := range cmds {
		if c.On() == layer {
			n++
		}
	}
	return n
}
