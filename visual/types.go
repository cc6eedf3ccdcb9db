// Package visual defines the input vocabulary front ends send to a trace
// session and the interface a frame sink implements.
package visual

import (
	"encoding/json"

	"github.com/Readm/consensus_trace/viewport"
)

// ControlCommandType represents types of control instructions from UI.
type ControlCommandType string

const (
	CommandNone         ControlCommandType = "none"
	CommandPointerDown  ControlCommandType = "pointerDown"
	CommandPointerMove  ControlCommandType = "pointerMove"
	CommandPointerUp    ControlCommandType = "pointerUp"
	CommandPointerLeave ControlCommandType = "pointerLeave"
	CommandKey          ControlCommandType = "key"
	CommandViewport     ControlCommandType = "viewport"
	CommandResize       ControlCommandType = "resize"
	CommandFilter       ControlCommandType = "filter"
	CommandNodes        ControlCommandType = "nodes"
	CommandSelectEvent  ControlCommandType = "selectEvent"
	CommandSegment      ControlCommandType = "segment"
	CommandRetry        ControlCommandType = "retry"
	CommandClearFilters ControlCommandType = "clearFilters"
	CommandResetFilters ControlCommandType = "resetFilters"
)

// Segment navigation directions.
const (
	SegmentNext = "next"
	SegmentPrev = "prev"
)

// ControlCommand captures one input for the session. Only the fields
// relevant to Type are set.
type ControlCommand struct {
	Type ControlCommandType `json:"type"`

	// Pointer position in canvas CSS pixels.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	Key *viewport.KeyInput `json:"key,omitempty"`
	Op  viewport.Op        `json:"op,omitempty"`

	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	PixelRatio float64 `json:"pixelRatio,omitempty"`

	// Filter selections; nil leaves the current selection unchanged.
	Steps  []string `json:"steps,omitempty"`
	Events []string `json:"events,omitempty"`
	Nodes  []string `json:"nodes,omitempty"`

	// Event is a raw record selected in an external table; null clears it.
	Event json.RawMessage `json:"event,omitempty"`

	Segment   int    `json:"segment,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// Sink accepts commands from a front end. Submit reports false when the
// command was dropped because the session is saturated.
type Sink interface {
	Submit(cmd ControlCommand) bool
}

// Visualizer defines methods for visualization implementations.
type Visualizer interface {
	SetHeadless(headless bool)
	IsHeadless() bool
	PublishFrame(frame any)
	// Bind connects the front end's input to a session.
	Bind(sink Sink)
}

// NullVisualizer is a no-op implementation used for headless mode.
type NullVisualizer struct {
	headless bool
}

// NewNullVisualizer creates a new NullVisualizer.
func NewNullVisualizer() *NullVisualizer {
	return &NullVisualizer{headless: true}
}

func (n *NullVisualizer) SetHeadless(headless bool) {
	n.headless = headless
}

func (n *NullVisualizer) IsHeadless() bool {
	return n.headless
}

func (n *NullVisualizer) PublishFrame(frame any) {}

func (n *NullVisualizer) Bind(Sink) {}
