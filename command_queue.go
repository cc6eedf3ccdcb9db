package main

import (
	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/visual"
)

// sessionMsg is one item in the session inbox. Exactly one field is set.
type sessionMsg struct {
	control *visual.ControlCommand
	loaded  *loadResult
	frame   bool
	status  *fetch.Simulation
	query   func(*Session)
}

// loadResult is the outcome of one background load, tagged with the
// session load sequence number it was started under.
type loadResult struct {
	seq   uint64
	batch *fetch.Batch
	err   error
}

// mergeMsgs folds adjacent inbox messages whose effect only depends on the
// latest one: redraw ticks, pointer moves and resizes.
func mergeMsgs(prev, next sessionMsg) (sessionMsg, bool) {
	if prev.frame && next.frame {
		return next, true
	}
	if prev.control == nil || next.control == nil || prev.control.Type != next.control.Type {
		return prev, false
	}
	switch next.control.Type {
	case visual.CommandPointerMove, visual.CommandResize:
		return next, true
	}
	return prev, false
}
