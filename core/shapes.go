package core

import "time"

// Canvas types of the drawable shapes.
const (
	CanvasStep  = "step"
	CanvasArrow = "arrow"
)

// Shape is a drawable object derived from events: *StateChangePoint or *Arrow.
type Shape interface {
	CanvasType() string
	ShapeType() string
	Time() time.Time
}

// StateChangePoint is a single-node state transition at one instant.
type StateChangePoint struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Node          string    `json:"node"`
	Height        *int64    `json:"height,omitempty"`
	Round         *int64    `json:"round,omitempty"`
	IsOurTurn     *bool     `json:"isOurTurn,omitempty"`
	Duration      *float64  `json:"duration,omitempty"`
	Proposal      *Proposal `json:"proposal,omitempty"`
	Proposer      string    `json:"proposer,omitempty"`
	CurrentHeight *int64    `json:"currentHeight,omitempty"`
	CurrentRound  *int64    `json:"currentRound,omitempty"`
	CurrentStep   string    `json:"currentStep,omitempty"`
	Step          string    `json:"step,omitempty"`
	NextStep      string    `json:"nextStep,omitempty"`
	NextHeight    *int64    `json:"nextHeight,omitempty"`
	Hash          string    `json:"hash,omitempty"`
}

func (p *StateChangePoint) CanvasType() string { return CanvasStep }
func (p *StateChangePoint) ShapeType() string  { return p.Type }
func (p *StateChangePoint) Time() time.Time    { return p.Timestamp }

// OurTurn reports whether the point carries a true isOurTurn flag.
func (p *StateChangePoint) OurTurn() bool {
	return p.IsOurTurn != nil && *p.IsOurTurn
}

// IsOurTurnProposal reports the "propose step, our turn" combination.
func (p *StateChangePoint) IsOurTurnProposal() bool {
	return p.Type == EventProposeStep && p.OurTurn()
}

// BlockHeight returns height, falling back to currentHeight.
func (p *StateChangePoint) BlockHeight() (int64, bool) {
	if p.Height != nil {
		return *p.Height, true
	}
	if p.CurrentHeight != nil {
		return *p.CurrentHeight, true
	}
	return 0, false
}

// Arrow is one point-to-point message transfer.
type Arrow struct {
	Type     string        `json:"type"`
	FromNode string        `json:"fromNode"`
	ToNode   string        `json:"toNode"`
	Height   *int64        `json:"height,omitempty"`
	SendTime time.Time     `json:"sendTime"`
	RecvTime time.Time     `json:"recvTime"`
	Latency  time.Duration `json:"latency"`
	// Timestamp is the log timestamp of the originating event.
	Timestamp time.Time `json:"timestamp"`
	Vote      *Vote     `json:"vote,omitempty"`
	Part      *Part     `json:"part,omitempty"`
	// SourceType and SourceNode identify the originating event.
	SourceType string `json:"sourceType"`
	SourceNode string `json:"sourceNode"`
}

func (a *Arrow) CanvasType() string { return CanvasArrow }
func (a *Arrow) ShapeType() string  { return a.Type }
func (a *Arrow) Time() time.Time    { return a.Timestamp }

// SendMillis returns SendTime in epoch milliseconds.
func (a *Arrow) SendMillis() float64 { return Millis(a.SendTime) }

// RecvMillis returns RecvTime in epoch milliseconds.
func (a *Arrow) RecvMillis() float64 { return Millis(a.RecvTime) }

// LatencyMillis returns the latency in milliseconds.
func (a *Arrow) LatencyMillis() float64 {
	return float64(a.Latency) / float64(time.Millisecond)
}

// Viewport is the visible time window in epoch milliseconds plus a display zoom factor.
type Viewport struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	ZoomLevel float64 `json:"zoomLevel"`
}

// Range returns End-Start.
func (v Viewport) Range() float64 {
	return v.End - v.Start
}

// Center returns the midpoint of the window.
func (v Viewport) Center() float64 {
	return (v.Start + v.End) / 2
}
