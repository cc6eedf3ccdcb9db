package geometry

import (
	"math"
	"testing"
	"time"

	"github.com/Readm/consensus_trace/core"
)

func TestLinearRoundTrip(t *testing.T) {
	s := NewLinear(1_740_823_200_000, 1_740_823_210_000, 0, 1070)
	for p := 0.0; p <= 1070; p += 0.37 {
		if got := s.Map(s.Invert(p)); math.Abs(got-p) > 1e-3 {
			t.Fatalf("round trip of %v gave %v", p, got)
		}
	}
}

func TestLinearDegenerateDomain(t *testing.T) {
	s := NewLinear(1000, 1000, 0, 800)
	if got := s.Map(1000); got != 400 {
		t.Fatalf("degenerate domain should map to range middle, got %v", got)
	}
	if got := s.Map(5000); math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("non-finite pixel %v", got)
	}
	if got := s.Invert(123); got != 1000 {
		t.Fatalf("invert on degenerate domain = %v", got)
	}
}

func TestLinearOverlap(t *testing.T) {
	s := NewLinear(1000, 2000, 0, 100)
	cases := []struct {
		a, b float64
		want bool
	}{
		{1500, 2500, true},
		{500, 1000, true},
		{2000, 3000, true},
		{2001, 3000, false},
		{0, 999, false},
		{500, 2500, true},
	}
	for _, c := range cases {
		if got := s.Overlaps(c.a, c.b); got != c.want {
			t.Fatalf("Overlaps(%v,%v) = %v", c.a, c.b, got)
		}
	}
}

func TestBandLayout(t *testing.T) {
	b := NewBand([]string{"a", "b", "c"}, 0, 330, 0.3)
	// step = 330 / (3 + 0.3) = 100, band = 70, outer gap 30.
	if math.Abs(b.Step()-100) > 1e-9 || math.Abs(b.Bandwidth()-70) > 1e-9 {
		t.Fatalf("step=%v band=%v", b.Step(), b.Bandwidth())
	}
	y, ok := b.Map("a")
	if !ok || math.Abs(y-30) > 1e-9 {
		t.Fatalf("a at %v", y)
	}
	c, _ := b.Center("c")
	if math.Abs(c-265) > 1e-9 {
		t.Fatalf("c center at %v", c)
	}
	if _, ok := b.Map("zz"); ok {
		t.Fatalf("unknown key should not map")
	}
}

func TestComputeScalesUsesViewport(t *testing.T) {
	base := time.UnixMilli(1_000_000).UTC()
	events := []core.CanvasEvent{
		{Type: "x", Timestamp: base, NodeID: "n2"},
		{Type: "y", Timestamp: base.Add(time.Second), NodeID: "n1", SourcePeer: "n3@host:1"},
	}
	size := Size{Width: 1130, Height: 400}
	vp := &core.Viewport{Start: 1_000_100, End: 1_000_600}
	s := ComputeScales(events, vp, size, DefaultMargins())
	if s.InnerWidth != 1000 || s.InnerHeight != 300 {
		t.Fatalf("inner %vx%v", s.InnerWidth, s.InnerHeight)
	}
	if got := s.PlotX(1_000_100); got != 0 {
		t.Fatalf("viewport start maps to %v", got)
	}
	if got := s.PlotX(1_000_600); got != 1000 {
		t.Fatalf("viewport end maps to %v", got)
	}
	keys := s.Y.Keys()
	if len(keys) != 3 || keys[0] != "n1" || keys[1] != "n2" || keys[2] != "n3" {
		t.Fatalf("y domain %v", keys)
	}
}

func TestComputeScalesFallback(t *testing.T) {
	base := time.UnixMilli(2_000_000).UTC()
	events := []core.CanvasEvent{
		{Type: "x", Timestamp: base, NodeID: "a"},
		{Type: "x", Timestamp: base.Add(90 * time.Millisecond), NodeID: "a"},
	}
	s := ComputeScales(events, nil, Size{Width: 230, Height: 200}, DefaultMargins())
	if lo, hi := s.X.Domain(); lo != 1_999_995 || hi != 2_000_095 {
		t.Fatalf("fallback domain [%v,%v]", lo, hi)
	}
}

func TestComputeScalesSingleInstant(t *testing.T) {
	base := time.UnixMilli(5_000).UTC()
	events := []core.CanvasEvent{{Type: "x", Timestamp: base, NodeID: "a"}}
	vp := &core.Viewport{Start: 5_000, End: 5_000}
	s := ComputeScales(events, vp, Size{Width: 330, Height: 200}, DefaultMargins())
	if got := s.PlotX(5_000); math.IsNaN(got) || got != 100 {
		t.Fatalf("single instant mapped to %v", got)
	}
}

func TestBackingStore(t *testing.T) {
	w, h := Size{Width: 800, Height: 600, PixelRatio: 2}.BackingStore()
	if w != 1600 || h != 1200 {
		t.Fatalf("backing store %dx%d", w, h)
	}
	w, h = Size{Width: 800, Height: 600}.BackingStore()
	if w != 800 || h != 600 {
		t.Fatalf("default ratio backing store %dx%d", w, h)
	}
}
