package main

import (
	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/geometry"
	"github.com/Readm/consensus_trace/interact"
	"github.com/Readm/consensus_trace/render"
)

// SessionStatus is the data state of a session.
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusLoading SessionStatus = "loading"
	StatusReady   SessionStatus = "ready"
	StatusEmpty   SessionStatus = "empty"
	StatusError   SessionStatus = "error"
)

// BlockMarker is a block the local node proposed, by first appearance.
type BlockMarker struct {
	Height    int64   `json:"height"`
	Timestamp float64 `json:"timestamp"`
}

// LegendEntry is one filterable item with its color.
type LegendEntry struct {
	Kind     string       `json:"kind"`
	Label    string       `json:"label"`
	Color    render.Color `json:"color"`
	Selected bool         `json:"selected"`
}

// FrameStats describes the reconstruction behind a frame.
type FrameStats struct {
	Events         int    `json:"events"`
	FilteredEvents int    `json:"filteredEvents"`
	Skipped        int    `json:"skipped"`
	Arrows         int    `json:"arrows"`
	Points         int    `json:"points"`
	VisibleArrows  int    `json:"visibleArrows"`
	VisiblePoints  int    `json:"visiblePoints"`
	P2PCandidates  int    `json:"p2pCandidates"`
	UnmatchedSends int    `json:"unmatchedSends"`
	Unkeyed        int    `json:"unkeyed"`
	TotalCount     int    `json:"totalCount"`
	RenderMicros   int64  `json:"renderMicros"`
	Warning        string `json:"warning,omitempty"`
}

// Frame is everything a front end needs to show one state of the session.
type Frame struct {
	Seq          uint64        `json:"seq"`
	SimulationID string        `json:"simulationId,omitempty"`
	SimStatus    string        `json:"simulationStatus,omitempty"`
	Status       SessionStatus `json:"status"`
	Error        string        `json:"error,omitempty"`

	Size      geometry.Size    `json:"size"`
	Margins   geometry.Margins `json:"margins"`
	Viewport  core.Viewport    `json:"viewport"`
	FullRange core.TimeRange   `json:"fullRange"`

	Nodes          []string      `json:"nodes"`
	SelectedNodes  []string      `json:"selectedNodes"`
	SelectedSteps  []string      `json:"selectedSteps"`
	SelectedEvents []string      `json:"selectedEvents"`
	Legend         []LegendEntry `json:"legend"`

	Commands []render.Command `json:"commands"`
	Tooltip  *render.Tooltip  `json:"tooltip,omitempty"`

	Selected       *core.CanvasEvent    `json:"selected,omitempty"`
	TableSelected  *core.CanvasEvent    `json:"tableSelected,omitempty"`
	BrushSelection *interact.BrushRange `json:"brushSelection,omitempty"`
	BlockMarkers   []BlockMarker        `json:"blockMarkers"`

	Large          bool              `json:"large"`
	CurrentSegment int               `json:"currentSegment"`
	Segments       []fetch.Segment   `json:"segments,omitempty"`
	Pagination     *fetch.Pagination `json:"pagination,omitempty"`

	Stats FrameStats `json:"stats"`
}

func legend(steps, events []string) []LegendEntry {
	stepSet := toSet(steps)
	eventSet := toSet(events)
	out := make([]LegendEntry, 0, len(render.StepOrder)+len(render.MessageKinds))
	for _, s := range render.StepOrder {
		_, on := stepSet[s]
		out = append(out, LegendEntry{Kind: "step", Label: s, Color: render.StepColor(s), Selected: on})
	}
	for _, k := range render.MessageKinds {
		_, on := eventSet[k.Label]
		out = append(out, LegendEntry{Kind: "message", Label: k.Label, Color: k.Color, Selected: on})
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
