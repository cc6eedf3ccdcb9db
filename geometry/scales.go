package geometry

import (
	"math"
	"sort"

	"github.com/Readm/consensus_trace/core"
)

const (
	// FallbackPaddingMs pads the data range when no viewport is supplied.
	FallbackPaddingMs = 5
	// BandPadding is the gap between lanes as a fraction of the lane step.
	BandPadding = 0.3
)

// Margins around the plot area in CSS pixels.
type Margins struct {
	Top    float64 `json:"top" yaml:"top"`
	Right  float64 `json:"right" yaml:"right"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Left   float64 `json:"left" yaml:"left"`
}

// DefaultMargins leaves room on the left for lane labels.
func DefaultMargins() Margins {
	return Margins{Top: 50, Right: 50, Bottom: 50, Left: 80}
}

// Size is the on-screen canvas size in CSS pixels plus the device pixel ratio.
type Size struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PixelRatio float64 `json:"pixelRatio"`
}

// Ratio returns the pixel ratio, treating unset or invalid values as 1.
func (s Size) Ratio() float64 {
	if s.PixelRatio <= 0 || math.IsNaN(s.PixelRatio) || math.IsInf(s.PixelRatio, 0) {
		return 1
	}
	return s.PixelRatio
}

// BackingStore returns the device pixel dimensions of the drawing surface.
func (s Size) BackingStore() (width, height int) {
	r := s.Ratio()
	return int(math.Round(s.Width * r)), int(math.Round(s.Height * r))
}

// Scales is the x/y scale pair plus the plot area it was computed for.
type Scales struct {
	X           LinearScale
	Y           BandScale
	InnerWidth  float64
	InnerHeight float64
	Margins     Margins
	Size        Size
}

// Inner returns plot-area dimensions, never negative.
func Inner(size Size, m Margins) (w, h float64) {
	return math.Max(0, size.Width-m.Left-m.Right), math.Max(0, size.Height-m.Top-m.Bottom)
}

// ComputeScales builds the scale pair. The x domain is the viewport window
// when vp is non-nil, else the padded data range. The y domain is every
// node referenced by events, sorted.
func ComputeScales(events []core.CanvasEvent, vp *core.Viewport, size Size, m Margins) Scales {
	w, h := Inner(size, m)
	d0, d1 := domainOf(events, vp)
	return Scales{
		X:           NewLinear(d0, d1, 0, w),
		Y:           NewBand(core.NodesOf(events), 0, h, BandPadding),
		InnerWidth:  w,
		InnerHeight: h,
		Margins:     m,
		Size:        size,
	}
}

// ComputeShapeScales is ComputeScales over derived geometry, for callers
// that hold arrows and points but not the events they came from.
func ComputeShapeScales(arrows []*core.Arrow, points []*core.StateChangePoint, vp *core.Viewport, size Size, m Margins) Scales {
	w, h := Inner(size, m)
	set := make(map[string]struct{})
	lo, hi := math.Inf(1), math.Inf(-1)
	extend := func(ms float64) {
		lo = math.Min(lo, ms)
		hi = math.Max(hi, ms)
	}
	for _, a := range arrows {
		set[a.FromNode] = struct{}{}
		set[a.ToNode] = struct{}{}
		extend(a.SendMillis())
		extend(a.RecvMillis())
	}
	for _, p := range points {
		if p.Node != "" {
			set[p.Node] = struct{}{}
		}
		extend(core.Millis(p.Timestamp))
	}
	delete(set, "")
	nodes := make([]string, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var d0, d1 float64
	switch {
	case vp != nil:
		d0, d1 = vp.Start, vp.End
	case !math.IsInf(lo, 0):
		d0, d1 = lo-FallbackPaddingMs, hi+FallbackPaddingMs
	}
	return Scales{
		X:           NewLinear(d0, d1, 0, w),
		Y:           NewBand(nodes, 0, h, BandPadding),
		InnerWidth:  w,
		InnerHeight: h,
		Margins:     m,
		Size:        size,
	}
}

func domainOf(events []core.CanvasEvent, vp *core.Viewport) (float64, float64) {
	if vp != nil {
		return vp.Start, vp.End
	}
	r, ok := core.RangeOf(events)
	if !ok {
		return 0, 0
	}
	return r.Min - FallbackPaddingMs, r.Max + FallbackPaddingMs
}

// PlotX maps a timestamp in ms to plot-area x.
func (s Scales) PlotX(ms float64) float64 {
	return s.X.Map(ms)
}

// PlotY maps a node to the center of its lane in plot-area y.
func (s Scales) PlotY(node string) (float64, bool) {
	return s.Y.Center(node)
}

// ToPlot converts canvas (CSS pixel) coordinates to plot-area coordinates.
func (s Scales) ToPlot(x, y float64) (float64, float64) {
	return x - s.Margins.Left, y - s.Margins.Top
}

// ToCanvas converts plot-area coordinates to canvas coordinates.
func (s Scales) ToCanvas(x, y float64) (float64, float64) {
	return x + s.Margins.Left, y + s.Margins.Top
}
