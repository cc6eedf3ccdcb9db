package raster

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/Readm/consensus_trace/render"
)

func TestDrawFillsBackground(t *testing.T) {
	bg := render.Hex("#2E364D")
	img := Draw(40, 20, 2, []render.Command{
		render.FillRect{Layer: render.LayerBackground, W: 40, H: 20, Color: bg},
	})
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 40 {
		t.Fatalf("expected 80x40 backing store, got %v", b)
	}
	got := img.RGBAAt(10, 10)
	if got.R != bg.R || got.G != bg.G || got.B != bg.B || got.A != 0xff {
		t.Fatalf("background pixel %v", got)
	}
}

func TestDrawFilledCircle(t *testing.T) {
	img := Draw(20, 20, 1, []render.Command{
		render.Circle{X: 10, Y: 10, R: 6, Color: render.Hex("#ff0000"), Filled: true},
	})
	if c := img.RGBAAt(10, 10); c.R != 0xff || c.A != 0xff {
		t.Fatalf("circle center %v", c)
	}
	if c := img.RGBAAt(1, 1); c.A != 0 {
		t.Fatalf("outside circle should be empty, got %v", c)
	}
}

func TestRingLeavesCenterEmpty(t *testing.T) {
	img := Draw(20, 20, 1, []render.Command{
		render.Circle{X: 10, Y: 10, R: 6, Color: render.Hex("#00ff00"), StrokeWidth: 1.5},
	})
	if c := img.RGBAAt(10, 10); c.A != 0 {
		t.Fatalf("ring center should be empty, got %v", c)
	}
	if c := img.RGBAAt(16, 10); c.G == 0 {
		t.Fatalf("ring edge should be painted, got %v", c)
	}
}

func TestDashSegments(t *testing.T) {
	segs := dashSegments(0, 0, 0, 20, []float64{5, 4})
	// 0-5, 9-14, 18-20
	if len(segs) != 3 {
		t.Fatalf("expected 3 dashes, got %v", segs)
	}
	if segs[2][1] != 18 || segs[2][3] != 20 {
		t.Fatalf("last dash %v", segs[2])
	}
	if solid := dashSegments(0, 0, 10, 0, nil); len(solid) != 1 {
		t.Fatalf("solid line split into %d", len(solid))
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	img := Draw(10, 10, 1, []render.Command{
		render.Text{Text: "n1", X: 1, Y: 1, Size: 8, Color: render.Hex("#cccccc"), Baseline: render.BaselineTop},
	})
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed")
	}
}

func TestThumbnail(t *testing.T) {
	img := Draw(200, 100, 1, nil)
	th := Thumbnail(img, 50)
	if b := th.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Fatalf("thumbnail bounds %v", b)
	}
}
