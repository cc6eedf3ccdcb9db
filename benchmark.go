package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/geometry"
	"github.com/Readm/consensus_trace/ingest"
	"github.com/Readm/consensus_trace/pairing"
	"github.com/Readm/consensus_trace/render"
	"github.com/Readm/consensus_trace/render/raster"
	"github.com/Readm/consensus_trace/viewport"
)

// BenchmarkResult stores the average duration of each pipeline stage.
type BenchmarkResult struct {
	Events     int
	Arrows     int
	Points     int
	Commands   int
	Iterations int
	Normalize  time.Duration
	Classify   time.Duration
	Scales     time.Duration
	Render     time.Duration
	Raster     time.Duration
}

// RunBenchmark times the reconstruction pipeline over the trace in path.
func RunBenchmark(path string, iterations int, cfg *Config) (*BenchmarkResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	if iterations <= 0 {
		iterations = 1
	}
	size := cfg.Size()
	res := &BenchmarkResult{Iterations: iterations}

	for i := 0; i < iterations; i++ {
		start := time.Now()
		norm := ingest.Normalize(data)
		res.Normalize += time.Since(start)

		start = time.Now()
		derived := pairing.Classify(norm.Events)
		res.Classify += time.Since(start)

		start = time.Now()
		var vp *core.Viewport
		if full, ok := core.RangeOf(norm.Events); ok {
			v := viewport.Initial(full)
			vp = &v
		}
		scales := geometry.ComputeScales(norm.Events, vp, size, cfg.Visual.Margins)
		res.Scales += time.Since(start)

		start = time.Now()
		cmds := render.Render(render.FrameState{
			Arrows:         derived.Arrows,
			Points:         derived.Points,
			Scales:         scales,
			SelectedEvents: cfg.Filters.Events,
			SelectedSteps:  cfg.Filters.Steps,
		})
		res.Render += time.Since(start)

		start = time.Now()
		w, h := size.BackingStore()
		raster.Draw(w, h, size.Ratio(), cmds)
		res.Raster += time.Since(start)

		res.Events, res.Arrows, res.Points, res.Commands = len(norm.Events), len(derived.Arrows), len(derived.Points), len(cmds)
	}

	n := time.Duration(iterations)
	res.Normalize /= n
	res.Classify /= n
	res.Scales /= n
	res.Render /= n
	res.Raster /= n
	return res, nil
}

// PrintBenchmark writes r as a small report.
func PrintBenchmark(w io.Writer, r *BenchmarkResult) {
	fmt.Fprintln(w, summaryHeader.Render(fmt.Sprintf("Pipeline benchmark (%d iterations)", r.Iterations)))
	fmt.Fprintf(w, "%d events -> %d arrows, %d points, %d draw commands\n", r.Events, r.Arrows, r.Points, r.Commands)
	for _, stage := range []struct {
		name string
		d    time.Duration
	}{
		{"normalize", r.Normalize},
		{"classify", r.Classify},
		{"scales", r.Scales},
		{"render", r.Render},
		{"raster", r.Raster},
	} {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, summaryLabel.Render(stage.name), summaryValue.Render(stage.d.String())))
	}
}
