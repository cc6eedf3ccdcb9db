package main

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/geometry"
	"github.com/Readm/consensus_trace/ingest"
	"github.com/Readm/consensus_trace/render"
	"github.com/Readm/consensus_trace/viewport"
	"github.com/Readm/consensus_trace/visual"
)

const sessionTrace = `[
  {"type":"sendVote","timestamp":"2025-03-01T10:00:00.000Z","nodeId":"nodeA","recipientPeerId":"nodeB",
   "vote":{"type":"prevote","height":10,"round":0,"blockId":{"hash":"abc"}}},
  {"type":"receiveVote","timestamp":"2025-03-01T10:00:00.012Z","nodeId":"nodeB","sourcePeer":"nodeA@10.0.0.1:26656",
   "vote":{"type":"prevote","height":10,"round":0,"blockId":{"hash":"abc"}}},
  {"type":"proposeStep","timestamp":"2025-03-01T10:00:00.100Z","nodeId":"nodeA","height":10,"isOurTurn":true},
  {"type":"proposeStep","timestamp":"2025-03-01T10:00:00.200Z","nodeId":"nodeA","height":10,"isOurTurn":true},
  {"type":"enteringCommitStep","timestamp":"2025-03-01T10:00:00.250Z","nodeId":"nodeC","height":10},
  {"type":"proposeStep","timestamp":"2025-03-01T10:00:00.300Z","nodeId":"nodeB","currentHeight":11,"isOurTurn":true},
  {"type":"enteringNewRound","timestamp":"2025-03-01T10:00:00.400Z","nodeId":"nodeB"}
]`

type stubSource struct {
	mu    sync.Mutex
	calls []fetch.Request
	load  func(ctx context.Context, n int, req fetch.Request) (*fetch.Batch, error)
}

func (s *stubSource) Load(ctx context.Context, req fetch.Request) (*fetch.Batch, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	n := len(s.calls)
	s.mu.Unlock()
	return s.load(ctx, n, req)
}

func (s *stubSource) requests() []fetch.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fetch.Request(nil), s.calls...)
}

func traceBatch(req fetch.Request) *fetch.Batch {
	res := ingest.Normalize([]byte(sessionTrace))
	return &fetch.Batch{Request: req, Result: res, Total: len(res.Events)}
}

func staticSource() *stubSource {
	return &stubSource{load: func(_ context.Context, _ int, req fetch.Request) (*fetch.Batch, error) {
		return traceBatch(req), nil
	}}
}

func startSession(t *testing.T, src Source, opts SessionOptions) (*Session, context.Context) {
	t.Helper()
	if opts.FrameInterval == 0 {
		opts.FrameInterval = time.Millisecond
	}
	if opts.Size.Width == 0 {
		opts.Size = geometry.Size{Width: 1000, Height: 400, PixelRatio: 1}
	}
	s := NewSession(src, opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("session run: %v", err)
		}
	})
	return s, ctx
}

func waitLoads(t *testing.T, ctx context.Context, s *Session, n uint64) *Frame {
	t.Helper()
	if err := s.Loads().Wait(ctx, n); err != nil {
		t.Fatalf("waiting for load %d: %v", n, err)
	}
	f, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return f
}

func TestSessionLoadsAndPublishes(t *testing.T) {
	frames := make(chan *Frame, 64)
	s := NewSession(staticSource(), SessionOptions{
		SimulationID:  "sim-1",
		FrameInterval: time.Millisecond,
		Size:          geometry.Size{Width: 1000, Height: 400, PixelRatio: 1},
	})
	s.AddPublisher(func(f *Frame) {
		select {
		case frames <- f:
		default:
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Run(ctx)

	for {
		select {
		case f := <-frames:
			if f.Status != StatusReady {
				continue
			}
			if f.SimulationID != "sim-1" {
				t.Fatalf("simulation id %q", f.SimulationID)
			}
			if f.Stats.Events != 7 || f.Stats.Arrows != 1 || f.Stats.Points != 7 {
				t.Fatalf("unexpected stats %+v", f.Stats)
			}
			if f.Stats.UnmatchedSends != 0 {
				t.Fatalf("vote pair should match, got %d unmatched", f.Stats.UnmatchedSends)
			}
			want := []string{"nodeA", "nodeB", "nodeC"}
			if !reflect.DeepEqual(f.Nodes, want) || !reflect.DeepEqual(f.SelectedNodes, want) {
				t.Fatalf("nodes %v selected %v", f.Nodes, f.SelectedNodes)
			}
			if len(f.Commands) == 0 {
				t.Fatalf("frame has no draw commands")
			}
			if f.Viewport.Start != f.FullRange.Min || f.Viewport.End != f.FullRange.Max {
				t.Fatalf("short traces are shown whole, got viewport %+v", f.Viewport)
			}
			return
		case <-ctx.Done():
			t.Fatalf("no ready frame published")
		}
	}
}

func TestSessionBlockMarkers(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	f := waitLoads(t, ctx, s, 1)

	if len(f.BlockMarkers) != 2 {
		t.Fatalf("expected one marker per height, got %+v", f.BlockMarkers)
	}
	if f.BlockMarkers[0].Height != 10 || f.BlockMarkers[1].Height != 11 {
		t.Fatalf("marker heights %+v", f.BlockMarkers)
	}
	if f.BlockMarkers[0].Timestamp >= f.BlockMarkers[1].Timestamp {
		t.Fatalf("markers not in time order: %+v", f.BlockMarkers)
	}
}

func TestSessionDiscardsStaleLoad(t *testing.T) {
	release := make(chan struct{})
	src := &stubSource{load: func(_ context.Context, n int, req fetch.Request) (*fetch.Batch, error) {
		if n == 1 {
			<-release
			return &fetch.Batch{Request: req, Result: ingest.Normalize([]byte(`[]`))}, nil
		}
		return traceBatch(req), nil
	}}
	metrics := NewMetrics()
	s, ctx := startSession(t, src, SessionOptions{Metrics: metrics})

	s.Submit(visual.ControlCommand{Type: visual.CommandRetry})
	f := waitLoads(t, ctx, s, 1)
	if f.Status != StatusReady || f.Stats.Events != 7 {
		t.Fatalf("second load should be applied, got %s with %d events", f.Status, f.Stats.Events)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(metrics.staleResponses) < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stale response was not discarded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if f.Stats.Events != 7 || s.Loads().Value() != 1 {
		t.Fatalf("stale load overwrote state: %d events, %d loads", f.Stats.Events, s.Loads().Value())
	}
}

func TestSessionLoadErrorKeepsSnapshot(t *testing.T) {
	src := &stubSource{load: func(_ context.Context, n int, req fetch.Request) (*fetch.Batch, error) {
		if n == 2 {
			return nil, &fetch.HTTPError{StatusCode: 500, Status: "Internal Server Error", URL: "/x"}
		}
		return traceBatch(req), nil
	}}
	s, ctx := startSession(t, src, SessionOptions{})
	waitLoads(t, ctx, s, 1)

	s.Submit(visual.ControlCommand{Type: visual.CommandRetry})
	f := waitLoads(t, ctx, s, 2)
	if f.Status != StatusError || f.Error == "" {
		t.Fatalf("expected error status, got %s %q", f.Status, f.Error)
	}
	if f.Stats.Arrows != 1 || f.Stats.Points != 7 {
		t.Fatalf("previous snapshot lost: %+v", f.Stats)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandRetry})
	f = waitLoads(t, ctx, s, 3)
	if f.Status != StatusReady || f.Error != "" {
		t.Fatalf("retry did not recover: %s %q", f.Status, f.Error)
	}
}

func TestSessionEmptyTrace(t *testing.T) {
	src := &stubSource{load: func(_ context.Context, _ int, req fetch.Request) (*fetch.Batch, error) {
		return &fetch.Batch{Request: req, Result: ingest.Normalize([]byte(`{"unexpected":true}`))}, nil
	}}
	s, ctx := startSession(t, src, SessionOptions{})
	f := waitLoads(t, ctx, s, 1)
	if f.Status != StatusEmpty || f.Stats.Warning == "" {
		t.Fatalf("expected empty status with warning, got %s %q", f.Status, f.Stats.Warning)
	}
	s.Submit(visual.ControlCommand{Type: visual.CommandKey, Key: &viewport.KeyInput{Code: "KeyD"}})
	if f, _ = s.Snapshot(ctx); f.Viewport != (core.Viewport{}) {
		t.Fatalf("viewport moved without data: %+v", f.Viewport)
	}
}

func TestSessionHoverTooltip(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	waitLoads(t, ctx, s, 1)

	var x, y float64
	err := s.Do(ctx, func(s *Session) {
		for _, p := range s.derived.Points {
			if p.Type == "enteringCommitStep" {
				py, _ := s.scales.PlotY(p.Node)
				x, y = s.scales.ToCanvas(s.scales.PlotX(core.Millis(p.Timestamp)), py)
			}
		}
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandPointerMove, X: x + 3, Y: y})
	f, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if f.Tooltip == nil || f.Tooltip.Title != "enteringCommitStep" {
		t.Fatalf("expected commit step tooltip, got %+v", f.Tooltip)
	}
	if f.Tooltip.X != x+3 || f.Tooltip.Y != y {
		t.Fatalf("tooltip not anchored at pointer: %+v", f.Tooltip)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandPointerLeave})
	if f, _ = s.Snapshot(ctx); f.Tooltip != nil {
		t.Fatalf("tooltip kept after pointer left")
	}
}

func TestSessionBrushSelection(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	f := waitLoads(t, ctx, s, 1)

	left := f.Margins.Left
	s.Submit(visual.ControlCommand{Type: visual.CommandPointerDown, X: left + 100, Y: 100})
	s.Submit(visual.ControlCommand{Type: visual.CommandPointerMove, X: left + 300, Y: 100})
	s.Submit(visual.ControlCommand{Type: visual.CommandPointerUp, X: left + 300, Y: 100})
	f, _ = s.Snapshot(ctx)
	if f.BrushSelection == nil {
		t.Fatalf("drag did not commit a brush range")
	}
	if f.BrushSelection.Start >= f.BrushSelection.End {
		t.Fatalf("brush range %+v", f.BrushSelection)
	}
	if int64(f.FullRange.Min) > f.BrushSelection.Start || f.BrushSelection.End > int64(f.FullRange.Max) {
		t.Fatalf("brush range %+v outside data %+v", f.BrushSelection, f.FullRange)
	}
}

func TestSessionKeyPansViewport(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	before := waitLoads(t, ctx, s, 1)

	s.Submit(visual.ControlCommand{Type: visual.CommandKey, Key: &viewport.KeyInput{Code: "KeyD", Ctrl: true}})
	f, _ := s.Snapshot(ctx)
	if f.Viewport != before.Viewport {
		t.Fatalf("modified key moved the viewport: %+v", f.Viewport)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandKey, Key: &viewport.KeyInput{Code: "KeyD"}})
	f, _ = s.Snapshot(ctx)
	want := viewport.Apply(viewport.PanRight, before.Viewport, before.FullRange)
	if f.Viewport != want {
		t.Fatalf("viewport %+v, want %+v", f.Viewport, want)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandViewport, Op: viewport.Widen})
	f, _ = s.Snapshot(ctx)
	if f.Viewport.ZoomLevel != viewport.WidenZoom {
		t.Fatalf("zoom %v", f.Viewport.ZoomLevel)
	}
}

func TestSessionNodeFilter(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	waitLoads(t, ctx, s, 1)

	s.Submit(visual.ControlCommand{Type: visual.CommandNodes, Nodes: []string{"nodeC"}})
	f, _ := s.Snapshot(ctx)
	if f.Stats.FilteredEvents != 1 || f.Stats.Arrows != 0 || f.Stats.Points != 1 {
		t.Fatalf("node filter not applied: %+v", f.Stats)
	}
	if len(f.BlockMarkers) != 0 {
		t.Fatalf("markers of filtered nodes kept: %+v", f.BlockMarkers)
	}
	if f.Stats.Events != 7 {
		t.Fatalf("node filter must not drop loaded events")
	}
}

func TestSessionFilterPresets(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	f := waitLoads(t, ctx, s, 1)
	if f.Stats.VisiblePoints != 4 {
		t.Fatalf("default filter should show propose and commit steps, got %d", f.Stats.VisiblePoints)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandClearFilters})
	f, _ = s.Snapshot(ctx)
	if len(f.SelectedSteps) != 0 || len(f.SelectedEvents) != 0 || f.Stats.VisiblePoints != 0 || f.Stats.VisibleArrows != 0 {
		t.Fatalf("clear left selections: %+v", f.Stats)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandResetFilters})
	f, _ = s.Snapshot(ctx)
	if len(f.SelectedSteps) != len(render.StepOrder) || f.Stats.VisiblePoints != 5 || f.Stats.VisibleArrows != 1 {
		t.Fatalf("reset did not select everything: %+v", f.Stats)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandFilter, Events: []string{}})
	f, _ = s.Snapshot(ctx)
	if f.Stats.VisibleArrows != 0 || len(f.SelectedSteps) != len(render.StepOrder) {
		t.Fatalf("event filter changed steps or kept arrows: %+v", f.Stats)
	}
}

func TestSessionTableSelection(t *testing.T) {
	s, ctx := startSession(t, staticSource(), SessionOptions{})
	waitLoads(t, ctx, s, 1)

	s.Submit(visual.ControlCommand{Type: visual.CommandSelectEvent,
		Event: []byte(`{"type":"enteringCommitStep","timestamp":"2025-03-01T10:00:00.260Z","nodeId":"nodeC"}`)})
	f, _ := s.Snapshot(ctx)
	if f.TableSelected == nil || f.TableSelected.NodeID != "nodeC" {
		t.Fatalf("table selection not stored: %+v", f.TableSelected)
	}
	found := false
	for _, c := range f.Commands {
		if circle, ok := c.(render.Circle); ok && circle.Color == render.TableColor {
			found = true
		}
	}
	if !found {
		t.Fatalf("selected point not drawn in the table color")
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandSelectEvent, Event: []byte(`null`)})
	if f, _ = s.Snapshot(ctx); f.TableSelected != nil {
		t.Fatalf("null did not clear the selection")
	}
}

func TestSessionSegmentNavigation(t *testing.T) {
	src := &stubSource{load: func(_ context.Context, n int, req fetch.Request) (*fetch.Batch, error) {
		b := traceBatch(req)
		if n == 1 {
			b.Total = 25000
			b.Large = true
			b.Segments = fetch.PlanSegments(25000)
		}
		return b, nil
	}}
	s, ctx := startSession(t, src, SessionOptions{SimulationID: "sim-1", PageLimit: 10000})
	f := waitLoads(t, ctx, s, 1)
	if !f.Large || len(f.Segments) != 3 || f.CurrentSegment != 1 {
		t.Fatalf("segments not planned: large=%v segments=%d current=%d", f.Large, len(f.Segments), f.CurrentSegment)
	}

	s.Submit(visual.ControlCommand{Type: visual.CommandSegment, Direction: visual.SegmentPrev})
	s.Submit(visual.ControlCommand{Type: visual.CommandSegment, Direction: visual.SegmentNext})
	f = waitLoads(t, ctx, s, 2)
	if f.CurrentSegment != 2 || len(f.Segments) != 3 {
		t.Fatalf("current segment %d of %d", f.CurrentSegment, len(f.Segments))
	}
	reqs := src.requests()
	if len(reqs) != 2 {
		t.Fatalf("prev from the first segment should not load, got %d requests", len(reqs))
	}
	q := reqs[1].Query
	if q.Segment != 2 || q.Cursor != "segment_1" || q.Limit != 10000 || reqs[1].SimulationID != "sim-1" {
		t.Fatalf("unexpected segment request %+v", reqs[1])
	}
	if q.Values().Get("cursor") != "" {
		t.Fatalf("mock cursor must not reach the API")
	}
}

func TestSessionReloadsWhenProcessingCompletes(t *testing.T) {
	src := staticSource()
	s, ctx := startSession(t, src, SessionOptions{SimulationID: "sim-1"})
	waitLoads(t, ctx, s, 1)

	if err := s.SubmitStatus(ctx, &fetch.Simulation{ID: "sim-1", Status: fetch.StatusProcessing}); err != nil {
		t.Fatalf("submit status: %v", err)
	}
	if err := s.SubmitStatus(ctx, &fetch.Simulation{ID: "sim-1", Status: fetch.StatusProcessed}); err != nil {
		t.Fatalf("submit status: %v", err)
	}
	f := waitLoads(t, ctx, s, 2)
	if f.SimStatus != fetch.StatusProcessed {
		t.Fatalf("status %q", f.SimStatus)
	}
	if n := len(src.requests()); n != 2 {
		t.Fatalf("expected a reload, got %d requests", n)
	}
}

func TestFileSource(t *testing.T) {
	path := t.TempDir() + "/trace.json"
	if err := os.WriteFile(path, []byte(`{"data":`+sessionTrace+`}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := FileSource{Path: path}.Load(context.Background(), fetch.Request{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Result.Events) != 7 || b.Total != 7 {
		t.Fatalf("unexpected batch %+v", b.Result)
	}
	if _, err := (FileSource{Path: path + ".missing"}).Load(context.Background(), fetch.Request{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFilterNodesKeepsUnattributedEvents(t *testing.T) {
	events := []core.CanvasEvent{{NodeID: "a"}, {NodeID: "b"}, {}}
	got := filterNodes(events, []string{"b"})
	if len(got) != 2 || got[0].NodeID != "b" || got[1].NodeID != "" {
		t.Fatalf("filterNodes = %+v", got)
	}
}

func TestLoadSignalWait(t *testing.T) {
	ls := NewLoadSignal(0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		ls.Update(2)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ls.Wait(ctx, 2); err != nil {
		t.Fatalf("wait: %v", err)
	}
	ls.Update(1)
	if ls.Value() != 2 {
		t.Fatalf("value went backwards: %d", ls.Value())
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if err := ls.Wait(short, 5); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
