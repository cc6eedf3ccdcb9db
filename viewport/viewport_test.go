package viewport

import (
	"math"
	"testing"

	"github.com/Readm/consensus_trace/core"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPan(t *testing.T) {
	vp := core.Viewport{Start: 1000, End: 2000, ZoomLevel: 1}
	full := core.TimeRange{Min: 0, Max: 10000}
	left := Apply(PanLeft, vp, full)
	if !near(left.Start, 900) || !near(left.End, 1900) {
		t.Fatalf("pan left = %+v", left)
	}
	right := Apply(PanRight, vp, full)
	if !near(right.Start, 1100) || !near(right.End, 2100) {
		t.Fatalf("pan right = %+v", right)
	}
	if right.ZoomLevel != 1 {
		t.Fatalf("pan must not change zoom")
	}
}

func TestWidenShrinksAroundCenter(t *testing.T) {
	vp := core.Viewport{Start: 1000, End: 2000, ZoomLevel: 1}
	got := Apply(Widen, vp, core.TimeRange{Min: 0, Max: 10000})
	if !near(got.Start, 1125) || !near(got.End, 1875) || !near(got.ZoomLevel, 1.5) {
		t.Fatalf("widen = %+v", got)
	}
}

func TestNarrowClampsToFullSpan(t *testing.T) {
	vp := core.Viewport{Start: 1000, End: 2000, ZoomLevel: 1}
	got := Apply(Narrow, vp, core.TimeRange{Min: 1000, Max: 2200})
	if !near(got.Range(), 1200) || !near(got.Center(), 1500) || !near(got.ZoomLevel, 0.75) {
		t.Fatalf("narrow = %+v", got)
	}
	free := Apply(Narrow, vp, core.TimeRange{Min: 5, Max: 5})
	if !near(free.Range(), 1500) {
		t.Fatalf("empty span must not clamp, got %+v", free)
	}
}

func TestZoomClamp(t *testing.T) {
	full := core.TimeRange{Min: 0, Max: 100000}
	vp := core.Viewport{Start: 0, End: 50000, ZoomLevel: 1}
	for i := 0; i < 50; i++ {
		vp = Apply(Widen, vp, full)
		if vp.ZoomLevel > MaxZoom {
			t.Fatalf("zoom exceeded max: %v", vp.ZoomLevel)
		}
	}
	if vp.ZoomLevel != MaxZoom {
		t.Fatalf("expected zoom to saturate at %v, got %v", MaxZoom, vp.ZoomLevel)
	}
	for i := 0; i < 100; i++ {
		vp = Apply(Narrow, vp, full)
		if vp.ZoomLevel < MinZoom {
			t.Fatalf("zoom below min: %v", vp.ZoomLevel)
		}
		if vp.Range() > full.Span()+1e-6 {
			t.Fatalf("range %v exceeds full span", vp.Range())
		}
	}
	if vp.ZoomLevel != MinZoom {
		t.Fatalf("expected zoom to saturate at %v, got %v", MinZoom, vp.ZoomLevel)
	}
}

func TestInitial(t *testing.T) {
	short := Initial(core.TimeRange{Min: 1000, Max: 31000})
	if short.Start != 1000 || short.End != 31000 || short.ZoomLevel != 1 {
		t.Fatalf("short trace should show all, got %+v", short)
	}
	long := Initial(core.TimeRange{Min: 1000, Max: 31001})
	if long.Start != 1000 || long.End != 11000 {
		t.Fatalf("long trace should show first 10s, got %+v", long)
	}
}

func TestBinding(t *testing.T) {
	cases := []struct {
		in   KeyInput
		op   Op
		want bool
	}{
		{KeyInput{Code: "KeyA"}, PanLeft, true},
		{KeyInput{Code: "KeyD"}, PanRight, true},
		{KeyInput{Code: "KeyW"}, Widen, true},
		{KeyInput{Code: "KeyS", Shift: true}, Narrow, true},
		{KeyInput{Code: "KeyS", Ctrl: true}, "", false},
		{KeyInput{Code: "KeyA", Meta: true}, "", false},
		{KeyInput{Code: "KeyA", Alt: true}, "", false},
		{KeyInput{Code: "KeyA", Editable: true}, "", false},
		{KeyInput{Code: "KeyA", Composing: true}, "", false},
		{KeyInput{Code: "KeyQ"}, "", false},
	}
	for _, c := range cases {
		op, ok := Binding(c.in)
		if op != c.op || ok != c.want {
			t.Fatalf("Binding(%+v) = %q,%v want %q,%v", c.in, op, ok, c.op, c.want)
		}
	}
}

func TestParseOp(t *testing.T) {
	if op, err := ParseOp("widen"); err != nil || op != Widen {
		t.Fatalf("ParseOp(widen) = %q, %v", op, err)
	}
	if _, err := ParseOp("zoom"); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}
