package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Readm/consensus_trace/render/raster"
	"github.com/Readm/consensus_trace/visual"
)

// PNGVisualizer keeps the latest frame and writes it to a PNG file on demand.
type PNGVisualizer struct {
	mu       sync.Mutex
	headless bool
	path     string
	frame    *Frame
}

// NewPNGVisualizer returns a visualizer writing to path.
func NewPNGVisualizer(path string) *PNGVisualizer {
	return &PNGVisualizer{path: path}
}

func (p *PNGVisualizer) SetHeadless(headless bool) {
	p.mu.Lock()
	p.headless = headless
	p.mu.Unlock()
}

func (p *PNGVisualizer) IsHeadless() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headless
}

func (p *PNGVisualizer) PublishFrame(frame any) {
	f, ok := frame.(*Frame)
	if !ok {
		return
	}
	p.mu.Lock()
	p.frame = f
	p.mu.Unlock()
}

// Bind is a no-op: a PNG file takes no input.
func (p *PNGVisualizer) Bind(visual.Sink) {}

// Write rasterizes the latest published frame to the output path.
func (p *PNGVisualizer) Write() error {
	p.mu.Lock()
	f := p.frame
	p.mu.Unlock()
	if f == nil {
		return errors.New("no frame published")
	}
	return WriteFramePNG(p.path, f)
}

// WriteFramePNG rasterizes f at its backing-store resolution into path.
func WriteFramePNG(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w, h := f.Size.BackingStore()
	img := raster.Draw(w, h, f.Size.Ratio(), f.Commands)
	if err := raster.EncodePNG(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}
