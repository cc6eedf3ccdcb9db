package main

import (
	"fmt"
	"image"
	"slices"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/Readm/consensus_trace/render"
	"github.com/Readm/consensus_trace/render/raster"
	"github.com/Readm/consensus_trace/viewport"
	"github.com/Readm/consensus_trace/visual"
)

// FyneVisualizer implements visual.Visualizer with a Fyne desktop window.
// Frames are rasterized into a canvas.Raster; mouse and keyboard input on
// the canvas is forwarded to the bound sink as control commands.
type FyneVisualizer struct {
	mu       sync.RWMutex
	headless bool
	sink     visual.Sink
	frame    *Frame

	app      fyne.App
	window   fyne.Window
	trace    *traceCanvas
	status   *widget.Label
	tooltip  *widget.Label
	segment  *widget.Label
	steps    *widget.CheckGroup
	messages *widget.CheckGroup
	onClose  func()
}

// NewFyneVisualizer creates a new Fyne-based visualizer.
func NewFyneVisualizer() *FyneVisualizer {
	return &FyneVisualizer{}
}

// Initialize builds the window. It is a no-op in headless mode.
func (v *FyneVisualizer) Initialize(width, height float32) {
	if v.headless {
		return
	}
	v.app = app.New()
	v.window = v.app.NewWindow("Consensus Trace")
	v.window.Resize(fyne.NewSize(width+220, height+60))

	v.trace = newTraceCanvas(v)
	v.status = widget.NewLabel("Loading...")
	v.tooltip = widget.NewLabel("")
	v.segment = widget.NewLabel("")

	v.steps = widget.NewCheckGroup(render.StepOrder, func(selected []string) {
		v.submit(visual.ControlCommand{Type: visual.CommandFilter, Steps: nonNil(selected)})
	})
	v.messages = widget.NewCheckGroup(render.AllMessageLabels(), func(selected []string) {
		v.submit(visual.ControlCommand{Type: visual.CommandFilter, Events: nonNil(selected)})
	})

	controlPanel := container.NewHBox(
		v.status,
		widget.NewSeparator(),
		widget.NewButton("Retry", func() { v.submit(visual.ControlCommand{Type: visual.CommandRetry}) }),
		widget.NewButton("Clear All", func() { v.submit(visual.ControlCommand{Type: visual.CommandClearFilters}) }),
		widget.NewButton("Reset Filter", func() { v.submit(visual.ControlCommand{Type: visual.CommandResetFilters}) }),
		widget.NewSeparator(),
		widget.NewButton("<", func() {
			v.submit(visual.ControlCommand{Type: visual.CommandSegment, Direction: visual.SegmentPrev})
		}),
		v.segment,
		widget.NewButton(">", func() {
			v.submit(visual.ControlCommand{Type: visual.CommandSegment, Direction: visual.SegmentNext})
		}),
	)
	filters := container.NewVScroll(container.NewVBox(
		widget.NewLabel("Steps"), v.steps,
		widget.NewSeparator(),
		widget.NewLabel("Messages"), v.messages,
		widget.NewSeparator(),
		v.tooltip,
	))

	v.window.Canvas().SetOnTypedKey(v.typedKey)
	v.window.SetContent(container.NewBorder(controlPanel, nil, nil, filters, v.trace))
	v.window.SetOnClosed(func() {
		if v.onClose != nil {
			v.onClose()
		}
	})
}

// OnClose registers fn to run when the window is closed.
func (v *FyneVisualizer) OnClose(fn func()) {
	v.onClose = fn
}

// SetHeadless switches headless state.
func (v *FyneVisualizer) SetHeadless(headless bool) {
	v.mu.Lock()
	v.headless = headless
	v.mu.Unlock()
}

// IsHeadless reports whether the window is disabled.
func (v *FyneVisualizer) IsHeadless() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.headless
}

// Bind routes window input to sink.
func (v *FyneVisualizer) Bind(sink visual.Sink) {
	v.mu.Lock()
	v.sink = sink
	v.mu.Unlock()
}

// PublishFrame stores frame and refreshes the window.
func (v *FyneVisualizer) PublishFrame(frame any) {
	f, ok := frame.(*Frame)
	if !ok || v.window == nil {
		return
	}
	v.mu.Lock()
	v.frame = f
	v.mu.Unlock()

	v.status.SetText(statusLine(f))
	v.tooltip.SetText(tooltipText(f.Tooltip))
	if f.Large {
		v.segment.SetText(fmt.Sprintf("Segment %d / %d", f.CurrentSegment, len(f.Segments)))
	} else {
		v.segment.SetText("")
	}
	syncChecks(v.steps, f.SelectedSteps)
	syncChecks(v.messages, f.SelectedEvents)
	v.trace.raster.Refresh()
}

// ShowAndRun shows the window and blocks on the Fyne event loop. It must
// be called from the main goroutine.
func (v *FyneVisualizer) ShowAndRun() {
	if v.headless || v.window == nil {
		return
	}
	v.window.ShowAndRun()
}

// Close closes the window.
func (v *FyneVisualizer) Close() {
	if v.window != nil {
		v.window.Close()
	}
}

func (v *FyneVisualizer) submit(cmd visual.ControlCommand) {
	v.mu.RLock()
	sink := v.sink
	v.mu.RUnlock()
	if sink != nil {
		sink.Submit(cmd)
	}
}

func (v *FyneVisualizer) latest() *Frame {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.frame
}

func (v *FyneVisualizer) typedKey(ev *fyne.KeyEvent) {
	name := string(ev.Name)
	if len(name) != 1 {
		return
	}
	v.submit(visual.ControlCommand{Type: visual.CommandKey, Key: &viewport.KeyInput{
		Code: "Key" + name,
		Key:  strings.ToLower(name),
	}})
}

func (v *FyneVisualizer) draw(w, h int) image.Image {
	f := v.latest()
	if f == nil || f.Size.Width <= 0 {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return raster.Draw(w, h, float64(w)/f.Size.Width, f.Commands)
}

func statusLine(f *Frame) string {
	line := fmt.Sprintf("%s | %d events, %d arrows, %d points", f.Status, f.Stats.Events, f.Stats.Arrows, f.Stats.Points)
	if f.SimStatus != "" {
		line += " | simulation " + f.SimStatus
	}
	if f.Error != "" {
		line += " | " + f.Error
	}
	return line
}

func tooltipText(t *render.Tooltip) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(t.Title)
	for _, r := range t.Rows {
		fmt.Fprintf(&b, "\n%s: %s", r.Label, r.Value)
	}
	return b.String()
}

func syncChecks(group *widget.CheckGroup, selected []string) {
	current := slices.Clone(group.Selected)
	want := slices.Clone(selected)
	slices.Sort(current)
	slices.Sort(want)
	if !slices.Equal(current, want) {
		group.SetSelected(want)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// traceCanvas is the drawing surface. It reports pointer input in CSS
// pixels, which for Fyne are device independent units.
type traceCanvas struct {
	widget.BaseWidget
	owner  *FyneVisualizer
	raster *canvas.Raster
}

var (
	_ desktop.Mouseable = (*traceCanvas)(nil)
	_ desktop.Hoverable = (*traceCanvas)(nil)
)

func newTraceCanvas(owner *FyneVisualizer) *traceCanvas {
	c := &traceCanvas{owner: owner}
	c.raster = canvas.NewRaster(owner.draw)
	c.ExtendBaseWidget(c)
	return c
}

func (c *traceCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.raster)
}

func (c *traceCanvas) Resize(size fyne.Size) {
	c.BaseWidget.Resize(size)
	scale := float32(1)
	if cv := fyne.CurrentApp().Driver().CanvasForObject(c); cv != nil {
		scale = cv.Scale()
	}
	c.owner.submit(visual.ControlCommand{
		Type:       visual.CommandResize,
		Width:      float64(size.Width),
		Height:     float64(size.Height),
		PixelRatio: float64(scale),
	})
}

func (c *traceCanvas) pointer(t visual.ControlCommandType, ev *desktop.MouseEvent) {
	c.owner.submit(visual.ControlCommand{Type: t, X: float64(ev.Position.X), Y: float64(ev.Position.Y)})
}

func (c *traceCanvas) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonPrimary {
		c.pointer(visual.CommandPointerDown, ev)
	}
}

func (c *traceCanvas) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonPrimary {
		c.pointer(visual.CommandPointerUp, ev)
	}
}

func (c *traceCanvas) MouseIn(ev *desktop.MouseEvent) {
	c.pointer(visual.CommandPointerMove, ev)
}

func (c *traceCanvas) MouseMoved(ev *desktop.MouseEvent) {
	c.pointer(visual.CommandPointerMove, ev)
}

func (c *traceCanvas) MouseOut() {
	c.owner.submit(visual.ControlCommand{Type: visual.CommandPointerLeave})
}
