package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/eventloop"
	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/geometry"
	"github.com/Readm/consensus_trace/hooks"
	"github.com/Readm/consensus_trace/ingest"
	"github.com/Readm/consensus_trace/interact"
	"github.com/Readm/consensus_trace/pairing"
	"github.com/Readm/consensus_trace/render"
	"github.com/Readm/consensus_trace/viewport"
	"github.com/Readm/consensus_trace/visual"
)

// Source loads one page of events.
type Source interface {
	Load(ctx context.Context, req fetch.Request) (*fetch.Batch, error)
}

// FileSource reads a trace payload from disk. Any payload shape the
// normalizer accepts works; segments and pagination do not apply.
type FileSource struct {
	Path string
}

// Load reads and normalizes the file.
func (f FileSource) Load(ctx context.Context, req fetch.Request) (*fetch.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	res := ingest.Normalize(data)
	return &fetch.Batch{Request: req, Result: res, Total: len(res.Events)}, nil
}

// SessionOptions configures a Session.
type SessionOptions struct {
	SimulationID  string
	PageLimit     int
	Segment       int
	Size          geometry.Size
	Margins       geometry.Margins
	Steps         []string
	Events        []string
	FrameInterval time.Duration
	InboxSize     int
	Headless      bool
	Metrics       *Metrics
	Broker        *hooks.PluginBroker
	Logger        *Logger
}

// Session owns one trace view: the loaded events, the derived arrows and
// points, the scales, the viewport and the interaction state. All of it
// lives on the goroutine running Run; other goroutines talk to it through
// Submit, SubmitStatus and Do.
type Session struct {
	opts    SessionOptions
	source  Source
	metrics *Metrics
	broker  *hooks.PluginBroker
	logger  *Logger

	inbox  *eventloop.Queue[sessionMsg]
	runner *eventloop.Runner[sessionMsg, *Frame]
	bridge *eventloop.VisualBridge[*Frame]
	frames *eventloop.FrameScheduler
	loads  *LoadSignal
	ctx    context.Context

	status     SessionStatus
	simStatus  string
	lastErr    error
	loadSeq    uint64
	loadCancel context.CancelFunc
	completed  uint64
	lastReq    fetch.Request

	events        []core.CanvasEvent
	nodes         []string
	selectedNodes []string
	steps         []string
	eventTypes    []string
	skipped       int
	warning       string

	total          int
	large          bool
	segments       []fetch.Segment
	currentSegment int
	pagination     *fetch.Pagination
	markers        []BlockMarker

	cache    *pairing.Cache
	filtered []core.CanvasEvent
	derived  pairing.Result
	scales   geometry.Scales
	size     geometry.Size
	full     core.TimeRange
	vp       core.Viewport

	ctrl          *interact.Controller
	pointerX      float64
	pointerY      float64
	pointerIn     bool
	tableSelected *core.CanvasEvent
	selected      *core.CanvasEvent
	brushRange    *interact.BrushRange
	frameSeq      uint64
}

// NewSession creates a session reading from source.
func NewSession(source Source, opts SessionOptions) *Session {
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger().With("session")
	}
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		opts.Size = geometry.Size{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight, PixelRatio: 1}
	}
	if opts.Margins == (geometry.Margins{}) {
		opts.Margins = geometry.DefaultMargins()
	}
	if opts.Steps == nil {
		opts.Steps = append([]string(nil), render.DefaultSelectedSteps...)
	}
	if opts.Events == nil {
		opts.Events = render.AllMessageLabels()
	}

	s := &Session{
		opts:       opts,
		source:     source,
		metrics:    opts.Metrics,
		broker:     opts.Broker,
		logger:     opts.Logger,
		inbox:      eventloop.NewQueue[sessionMsg](opts.InboxSize),
		loads:      NewLoadSignal(0),
		status:     StatusIdle,
		steps:      append([]string(nil), opts.Steps...),
		eventTypes: append([]string(nil), opts.Events...),
		cache:      pairing.NewCache(),
		size:       opts.Size,
		ctrl:       interact.NewController(opts.Broker),
	}
	s.bridge = eventloop.NewVisualBridge[*Frame](opts.Headless)
	loop := eventloop.NewCommandLoop[sessionMsg](s.inbox, s.handle)
	loop.SetMerge(mergeMsgs)
	s.runner = eventloop.NewRunner[sessionMsg, *Frame](loop, s.bridge)
	s.frames = eventloop.NewFrameScheduler(opts.FrameInterval, s.fireFrame)
	s.rescale()
	return s
}

// AddPublisher registers a frame sink. Call it before Run.
func (s *Session) AddPublisher(publish func(*Frame)) {
	s.bridge.AddPublisher(publish)
}

// Loads returns the signal counting finished loads.
func (s *Session) Loads() *LoadSignal {
	return s.loads
}

// Submit queues a control command without blocking. It implements visual.Sink.
func (s *Session) Submit(cmd visual.ControlCommand) bool {
	if !s.inbox.Enqueue(sessionMsg{control: &cmd}) {
		s.metrics.RecordDroppedCommand()
		return false
	}
	return true
}

// SubmitStatus forwards a polled simulation status to the session.
func (s *Session) SubmitStatus(ctx context.Context, sim *fetch.Simulation) error {
	return s.inbox.Put(ctx, sessionMsg{status: sim})
}

// Do runs fn on the session goroutine and waits for it to finish.
func (s *Session) Do(ctx context.Context, fn func(*Session)) error {
	done := make(chan struct{})
	err := s.inbox.Put(ctx, sessionMsg{query: func(s *Session) {
		defer close(done)
		fn(s)
	}})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot builds the current frame on the session goroutine.
func (s *Session) Snapshot(ctx context.Context) (*Frame, error) {
	var f *Frame
	err := s.Do(ctx, func(s *Session) { f = s.buildFrame() })
	return f, err
}

// Run starts the first load and processes the inbox until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	s.startLoad(fetch.Request{
		SimulationID: s.opts.SimulationID,
		Query: fetch.Query{
			Limit:             s.opts.PageLimit,
			Segment:           s.opts.Segment,
			IncludeTotalCount: true,
		},
	})
	err := s.runner.Run(ctx)
	s.frames.Stop()
	handled, merged := s.runner.CommandStats()
	s.logger.Debugf("session stopped: %d messages handled, %d merged", handled, merged)
	if s.loadCancel != nil {
		s.loadCancel()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) handle(msg sessionMsg) bool {
	switch {
	case msg.control != nil:
		s.handleControl(*msg.control)
	case msg.loaded != nil:
		s.applyLoad(msg.loaded)
	case msg.frame:
		s.publish()
	case msg.status != nil:
		s.handleStatus(msg.status)
	case msg.query != nil:
		msg.query(s)
	}
	return true
}

func (s *Session) fireFrame() {
	msg := sessionMsg{frame: true}
	if !s.inbox.Enqueue(msg) {
		go func() { _ = s.inbox.Put(s.ctx, msg) }()
	}
}

func (s *Session) requestFrame() {
	s.frames.Request()
}

func (s *Session) startLoad(req fetch.Request) {
	if s.loadCancel != nil {
		s.loadCancel()
	}
	s.loadSeq++
	seq := s.loadSeq
	ctx, cancel := context.WithCancel(s.ctx)
	s.loadCancel = cancel
	s.lastReq = req
	s.status = StatusLoading
	s.lastErr = nil
	s.requestFrame()

	s.logger.Debugf("load %d: simulation=%q segment=%d cursor=%q", seq, req.SimulationID, req.Query.Segment, req.Query.Cursor)
	go func() {
		batch, err := s.source.Load(ctx, req)
		_ = s.inbox.Put(s.ctx, sessionMsg{loaded: &loadResult{seq: seq, batch: batch, err: err}})
	}()
}

func (s *Session) applyLoad(r *loadResult) {
	if r.seq != s.loadSeq || errors.Is(r.err, fetch.ErrStale) {
		s.metrics.RecordStale()
		s.logger.Debugf("discarding stale load %d (current %d)", r.seq, s.loadSeq)
		return
	}
	s.loadCancel()
	s.loadCancel = nil
	s.completed++
	defer s.loads.Update(s.completed)
	defer s.requestFrame()

	if r.err != nil {
		s.status = StatusError
		s.lastErr = r.err
		s.logger.Errorf("load failed: %v", r.err)
		return
	}

	b := r.batch
	res := b.Result
	s.metrics.RecordNormalized(len(res.Events), res.Skipped, res.Warning != "")
	if res.Warning != "" {
		s.logger.Warnf("%s", res.Warning)
	}

	s.events = res.Events
	s.nodes = res.Nodes
	s.selectedNodes = append([]string(nil), res.Nodes...)
	s.skipped = res.Skipped
	s.warning = res.Warning
	s.total = b.Total
	s.pagination = nil
	if b.Page != nil {
		p := b.Page.Pagination
		s.pagination = &p
	}
	switch {
	case len(b.Segments) > 0:
		s.segments = b.Segments
		s.large = true
	case b.Request.Query.Segment <= 1:
		s.segments = nil
		s.large = b.Large
	}
	s.currentSegment = 0
	if s.large {
		s.currentSegment = max(1, b.Request.Query.Segment)
	}

	s.tableSelected = nil
	s.selected = nil
	s.brushRange = nil
	if full, ok := core.RangeOf(s.events); ok {
		s.full = full
		s.vp = viewport.Initial(full)
		s.status = StatusReady
	} else {
		s.full = core.TimeRange{}
		s.vp = core.Viewport{}
		s.status = StatusEmpty
	}
	s.recompute()

	err := s.broker.EmitDataLoaded(&hooks.DataLoadedContext{
		SimulationID:   b.Request.SimulationID,
		Segment:        s.currentSegment,
		Events:         len(s.events),
		Skipped:        s.skipped,
		Arrows:         len(s.derived.Arrows),
		Points:         len(s.derived.Points),
		UnmatchedSends: s.derived.UnmatchedSends,
		Unkeyed:        s.derived.Unkeyed,
	})
	if err != nil {
		s.logger.Warnf("data-loaded hook failed: %v", err)
	}
	s.logger.Infof("loaded %d events (%d skipped): %d arrows, %d points, %d unmatched sends",
		len(s.events), s.skipped, len(s.derived.Arrows), len(s.derived.Points), s.derived.UnmatchedSends)
}

func (s *Session) handleStatus(sim *fetch.Simulation) {
	prev := s.simStatus
	s.simStatus = sim.Status
	if prev != sim.Status {
		s.logger.Infof("simulation %s status %s", sim.ID, sim.Status)
		s.requestFrame()
	}
	if prev != "" && prev != fetch.StatusProcessed && sim.Status == fetch.StatusProcessed {
		s.startLoad(s.lastReq)
	}
}

// recompute rebuilds the derived shapes and the scales together so a frame
// never mixes old shapes with new scales.
func (s *Session) recompute() {
	s.filtered = filterNodes(s.events, s.selectedNodes)
	s.derived = s.cache.Classify(s.filtered)
	s.metrics.RecordClassified(s.derived)
	s.markers = blockMarkers(s.derived.Points)
	s.ctrl.Reset()
	s.rescale()
}

func (s *Session) rescale() {
	var vp *core.Viewport
	if len(s.events) > 0 {
		v := s.vp
		vp = &v
	}
	s.scales = geometry.ComputeScales(s.filtered, vp, s.size, s.opts.Margins)
}

// filterNodes keeps events of the selected nodes. Events without a node id
// are always kept.
func filterNodes(events []core.CanvasEvent, nodes []string) []core.CanvasEvent {
	selected := toSet(nodes)
	return lo.Filter(events, func(e core.CanvasEvent, _ int) bool {
		if e.NodeID == "" {
			return true
		}
		_, ok := selected[e.NodeID]
		return ok
	})
}

// blockMarkers lists the blocks proposed on our turn, one per height at its
// first appearance, in time order.
func blockMarkers(points []*core.StateChangePoint) []BlockMarker {
	seen := make(map[int64]struct{})
	var out []BlockMarker
	for _, p := range points {
		if !p.IsOurTurnProposal() {
			continue
		}
		h, _ := p.BlockHeight()
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, BlockMarker{Height: h, Timestamp: core.Millis(p.Timestamp)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func (s *Session) frameState() render.FrameState {
	return render.FrameState{
		Arrows:         s.derived.Arrows,
		Points:         s.derived.Points,
		Scales:         s.scales,
		SelectedEvents: s.eventTypes,
		SelectedSteps:  s.steps,
		Highlight:      s.ctrl.Highlight(),
		TableSelected:  s.tableSelected,
		Brush:          s.ctrl.Brush(),
	}
}

func (s *Session) scene() interact.Scene {
	return interact.SceneOf(s.frameState(), s.filtered)
}

func (s *Session) handleControl(cmd visual.ControlCommand) {
	switch cmd.Type {
	case visual.CommandPointerDown:
		s.pointerX, s.pointerY, s.pointerIn = cmd.X, cmd.Y, true
		s.applyOutcome(s.ctrl.PointerDown(cmd.X, cmd.Y, s.scene()))
	case visual.CommandPointerMove:
		moved := !s.pointerIn || s.pointerX != cmd.X || s.pointerY != cmd.Y
		s.pointerX, s.pointerY, s.pointerIn = cmd.X, cmd.Y, true
		out := s.ctrl.PointerMove(cmd.X, cmd.Y, s.scene())
		if moved && out.Highlight != nil {
			out.Redraw = true
		}
		s.applyOutcome(out)
	case visual.CommandPointerUp:
		s.pointerX, s.pointerY = cmd.X, cmd.Y
		s.applyOutcome(s.ctrl.PointerUp(cmd.X, cmd.Y, s.scene()))
	case visual.CommandPointerLeave:
		s.pointerIn = false
		s.applyOutcome(s.ctrl.PointerLeave())
	case visual.CommandKey:
		if cmd.Key == nil {
			return
		}
		if op, ok := viewport.Binding(*cmd.Key); ok {
			s.applyViewport(op, "key")
		}
	case visual.CommandViewport:
		s.applyViewport(cmd.Op, "control")
	case visual.CommandResize:
		if cmd.Width <= 0 || cmd.Height <= 0 {
			return
		}
		s.size = geometry.Size{Width: cmd.Width, Height: cmd.Height, PixelRatio: cmd.PixelRatio}
		s.rescale()
		s.requestFrame()
	case visual.CommandFilter:
		if cmd.Steps != nil {
			s.steps = append([]string{}, cmd.Steps...)
		}
		if cmd.Events != nil {
			s.eventTypes = append([]string{}, cmd.Events...)
		}
		s.ctrl.Reset()
		s.requestFrame()
	case visual.CommandClearFilters:
		s.steps = []string{}
		s.eventTypes = []string{}
		s.ctrl.Reset()
		s.requestFrame()
	case visual.CommandResetFilters:
		s.steps = append([]string(nil), render.StepOrder...)
		s.eventTypes = render.AllMessageLabels()
		s.ctrl.Reset()
		s.requestFrame()
	case visual.CommandNodes:
		s.selectedNodes = append([]string{}, cmd.Nodes...)
		s.recompute()
		s.requestFrame()
	case visual.CommandSelectEvent:
		s.selectTableEvent(cmd)
	case visual.CommandSegment:
		s.navigateSegment(cmd)
	case visual.CommandRetry:
		s.startLoad(s.lastReq)
	default:
		s.logger.Debugf("ignoring control command %q", cmd.Type)
	}
}

func (s *Session) selectTableEvent(cmd visual.ControlCommand) {
	defer s.requestFrame()
	if len(cmd.Event) == 0 || string(cmd.Event) == "null" {
		s.tableSelected = nil
		return
	}
	ev, err := ingest.NormalizeOne(cmd.Event)
	if err != nil {
		s.logger.Warnf("ignoring table selection: %v", err)
		return
	}
	s.tableSelected = &ev
}

func (s *Session) navigateSegment(cmd visual.ControlCommand) {
	if len(s.segments) == 0 {
		return
	}
	target := cmd.Segment
	switch cmd.Direction {
	case visual.SegmentNext:
		target = s.currentSegment + 1
	case visual.SegmentPrev:
		target = s.currentSegment - 1
	}
	if target < 1 || target > len(s.segments) || target == s.currentSegment {
		return
	}
	seg := s.segments[target-1]
	req := s.lastReq
	req.Query.Segment = seg.ID
	req.Query.Cursor = seg.Cursor
	req.Query.Before = ""
	s.currentSegment = target
	s.startLoad(req)
}

func (s *Session) applyViewport(op viewport.Op, cause string) {
	if len(s.events) == 0 {
		return
	}
	prev := s.vp
	s.vp = viewport.Apply(op, s.vp, s.full)
	if s.vp == prev {
		return
	}
	s.ctrl.Reset()
	s.rescale()
	s.requestFrame()
	err := s.broker.EmitViewportChange(&hooks.ViewportChangeContext{Cause: cause + ":" + string(op), Previous: prev, Current: s.vp})
	if err != nil {
		s.logger.Warnf("viewport-change hook failed: %v", err)
	}
}

func (s *Session) applyOutcome(out interact.Outcome) {
	if out.Committed != nil {
		r := *out.Committed
		s.brushRange = &r
	}
	if out.Clicked {
		s.selected = out.Selected
	}
	if out.Redraw {
		s.requestFrame()
	}
}

func (s *Session) publish() {
	if !s.runner.VisualEnabled() {
		return
	}
	start := time.Now()
	f := s.buildFrame()
	elapsed := time.Since(start)
	f.Stats.RenderMicros = elapsed.Microseconds()
	s.metrics.RecordFrame(elapsed)
	err := s.broker.EmitFrame(&hooks.FrameContext{Seq: f.Seq, Commands: len(f.Commands), Elapsed: elapsed})
	if err != nil {
		s.logger.Warnf("frame hook failed: %v", err)
	}
	s.runner.PublishFrame(f)
}

func (s *Session) buildFrame() *Frame {
	s.frameSeq++
	st := s.frameState()
	cmds := render.Render(st)

	f := &Frame{
		Seq:            s.frameSeq,
		SimulationID:   s.lastReq.SimulationID,
		SimStatus:      s.simStatus,
		Status:         s.status,
		Size:           s.size,
		Margins:        s.opts.Margins,
		Viewport:       s.vp,
		FullRange:      s.full,
		Nodes:          s.nodes,
		SelectedNodes:  s.selectedNodes,
		SelectedSteps:  s.steps,
		SelectedEvents: s.eventTypes,
		Legend:         legend(s.steps, s.eventTypes),
		Commands:       cmds,
		Selected:       s.selected,
		TableSelected:  s.tableSelected,
		BrushSelection: s.brushRange,
		BlockMarkers:   s.markers,
		Large:          s.large,
		CurrentSegment: s.currentSegment,
		Segments:       s.segments,
		Pagination:     s.pagination,
		Stats: FrameStats{
			Events:         len(s.events),
			FilteredEvents: len(s.filtered),
			Skipped:        s.skipped,
			Arrows:         len(s.derived.Arrows),
			Points:         len(s.derived.Points),
			VisibleArrows:  len(render.VisibleArrows(st)),
			VisiblePoints:  len(render.VisiblePoints(st)),
			P2PCandidates:  s.derived.P2PCandidates,
			UnmatchedSends: s.derived.UnmatchedSends,
			Unkeyed:        s.derived.Unkeyed,
			TotalCount:     s.total,
			Warning:        s.warning,
		},
	}
	if s.lastErr != nil {
		f.Error = s.lastErr.Error()
	}
	if hl := s.ctrl.Highlight(); hl != nil && s.pointerIn {
		if tip := render.TooltipFor(hl); tip != nil {
			tip.X, tip.Y = s.pointerX, s.pointerY
			f.Tooltip = tip
		}
	}
	return f
}
