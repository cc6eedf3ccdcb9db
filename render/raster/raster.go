// Package raster replays render commands onto an RGBA image.
package raster

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/Readm/consensus_trace/render"
)

// circleSegments is the polygon resolution used for circles.
const circleSegments = 48

var (
	fontOnce sync.Once
	fontData *opentype.Font
	fontErr  error
	faceMu   sync.Mutex
	faces    = map[float64]font.Face{}
)

func faceFor(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontData, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	faceMu.Lock()
	defer faceMu.Unlock()
	if f, ok := faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(fontData, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	faces[size] = f
	return f, nil
}

// canvas carries the target image and the CSS-to-device scale.
type canvas struct {
	img   *image.RGBA
	scale float64
	z     *vector.Rasterizer
}

// Draw rasterizes cmds at width x height CSS pixels multiplied by scale.
func Draw(width, height int, scale float64, cmds []render.Command) *image.RGBA {
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	c := &canvas{
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		scale: scale,
		z:     vector.NewRasterizer(w, h),
	}
	for _, cmd := range cmds {
		switch v := cmd.(type) {
		case render.FillRect:
			c.fillRect(v)
		case render.Line:
			c.line(v)
		case render.Polygon:
			c.polygon(v.Points, image.NewUniform(v.Color.NRGBA()))
		case render.Circle:
			c.circle(v)
		case render.Text:
			c.text(v)
		}
	}
	return c.img
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Thumbnail downsamples img to fit within maxWidth.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func (c *canvas) fillRect(r render.FillRect) {
	c.polygon([]render.Point{
		{X: r.X, Y: r.Y}, {X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H}, {X: r.X, Y: r.Y + r.H},
	}, image.NewUniform(r.Color.NRGBA()))
}

// fill rasterizes the contours already added to z with src.
func (c *canvas) fill(src image.Image) {
	c.z.DrawOp = draw.Over
	c.z.Draw(c.img, c.img.Bounds(), src, image.Point{})
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
}

func (c *canvas) contour(pts []render.Point) {
	if len(pts) < 3 {
		return
	}
	s := float32(c.scale)
	c.z.MoveTo(float32(pts[0].X)*s, float32(pts[0].Y)*s)
	for _, p := range pts[1:] {
		c.z.LineTo(float32(p.X)*s, float32(p.Y)*s)
	}
	c.z.ClosePath()
}

func (c *canvas) polygon(pts []render.Point, src image.Image) {
	c.contour(pts)
	c.fill(src)
}

// segmentQuad returns the rectangle covering a stroke of width w.
func segmentQuad(x1, y1, x2, y2, w float64) []render.Point {
	dx, dy := x2-x1, y2-y1
	l := math.Hypot(dx, dy)
	if l == 0 {
		dx, dy, l = 1, 0, 1
	}
	nx, ny := -dy/l*w/2, dx/l*w/2
	return []render.Point{
		{X: x1 + nx, Y: y1 + ny}, {X: x2 + nx, Y: y2 + ny},
		{X: x2 - nx, Y: y2 - ny}, {X: x1 - nx, Y: y1 - ny},
	}
}

func (c *canvas) line(l render.Line) {
	width := l.Width
	if width <= 0 {
		width = 1
	}
	var src image.Image = image.NewUniform(l.Color.NRGBA())
	if l.Gradient != nil {
		src = &gradientImage{g: *l.Gradient, scale: c.scale}
	}
	for _, seg := range dashSegments(l.X1, l.Y1, l.X2, l.Y2, l.Dash) {
		c.contour(segmentQuad(seg[0], seg[1], seg[2], seg[3], width))
	}
	c.fill(src)
}

// dashSegments splits a line by a dash pattern; an empty pattern is solid.
func dashSegments(x1, y1, x2, y2 float64, dash []float64) [][4]float64 {
	total := math.Hypot(x2-x1, y2-y1)
	period := 0.0
	for _, d := range dash {
		period += d
	}
	if len(dash) == 0 || period <= 0 || total == 0 {
		return [][4]float64{{x1, y1, x2, y2}}
	}
	ux, uy := (x2-x1)/total, (y2-y1)/total
	var out [][4]float64
	pos, i := 0.0, 0
	for pos < total {
		end := math.Min(pos+dash[i%len(dash)], total)
		if i%2 == 0 {
			out = append(out, [4]float64{x1 + ux*pos, y1 + uy*pos, x1 + ux*end, y1 + uy*end})
		}
		pos = end
		i++
	}
	return out
}

func circlePoints(cx, cy, r float64, clockwise bool) []render.Point {
	pts := make([]render.Point, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		if clockwise {
			a = -a
		}
		pts[i] = render.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

func (c *canvas) circle(ci render.Circle) {
	src := image.NewUniform(ci.Color.NRGBA())
	if ci.Filled {
		c.polygon(circlePoints(ci.X, ci.Y, ci.R, false), src)
		return
	}
	w := ci.StrokeWidth
	if w <= 0 {
		w = 1
	}
	// Opposite windings cancel, leaving the ring.
	c.contour(circlePoints(ci.X, ci.Y, ci.R+w/2, false))
	c.contour(circlePoints(ci.X, ci.Y, math.Max(0, ci.R-w/2), true))
	c.fill(src)
}

func (c *canvas) text(t render.Text) {
	face, err := faceFor(t.Size * c.scale)
	if err != nil {
		return
	}
	x := t.X * c.scale
	y := t.Y * c.scale
	width := float64(font.MeasureString(face, t.Text)) / 64
	switch t.Align {
	case render.AlignCenter:
		x -= width / 2
	case render.AlignRight:
		x -= width
	}
	m := face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64
	switch t.Baseline {
	case render.BaselineTop:
		y += ascent
	case render.BaselineMiddle:
		y += (ascent - descent) / 2
	}
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(t.Color.NRGBA()),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(t.Text)
}

// gradientImage is an unbounded source image that evaluates a linear
// gradient given in CSS pixels.
type gradientImage struct {
	g     render.Gradient
	scale float64
}

func (g *gradientImage) ColorModel() color.Model { return color.NRGBAModel }

func (g *gradientImage) Bounds() image.Rectangle {
	return image.Rect(-1e9, -1e9, 1e9, 1e9)
}

func (g *gradientImage) At(x, y int) color.Color {
	px := (float64(x) + 0.5) / g.scale
	py := (float64(y) + 0.5) / g.scale
	return g.g.At(px, py).NRGBA()
}
