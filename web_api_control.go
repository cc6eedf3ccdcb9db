package main

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"

	"github.com/Readm/consensus_trace/viewport"
	"github.com/Readm/consensus_trace/visual"
)

const maxControlBody = 1 << 20

// controlRequest is the wire form of one control command, shared by
// POST /api/control and websocket messages.
type controlRequest struct {
	Type       string             `json:"type"`
	X          float64            `json:"x"`
	Y          float64            `json:"y"`
	Key        *viewport.KeyInput `json:"key,omitempty"`
	Op         string             `json:"op,omitempty"`
	Width      float64            `json:"width,omitempty"`
	Height     float64            `json:"height,omitempty"`
	PixelRatio float64            `json:"pixelRatio,omitempty"`
	Steps      []string           `json:"steps,omitempty"`
	Events     []string           `json:"events,omitempty"`
	Nodes      []string           `json:"nodes,omitempty"`
	Event      json.RawMessage    `json:"event,omitempty"`
	Segment    int                `json:"segment,omitempty"`
	Direction  string             `json:"direction,omitempty"`
}

func (ws *WebServer) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody))
	if err != nil {
		GetLogger().Debugf("Error reading request body: %v", err)
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	var req controlRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		GetLogger().Debugf("Error decoding JSON: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cmd, err := ws.processControlRequest(&req)
	if err != nil {
		GetLogger().Debugf("Error processing control request: %v", err)
		status := http.StatusInternalServerError
		var verr *validationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	if !ws.queueCommand(*cmd) {
		GetLogger().Debugf("Command queue full, cannot accept %s", cmd.Type)
		http.Error(w, "Command queue full", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Command accepted"))
}

func (ws *WebServer) processControlRequest(req *controlRequest) (*visual.ControlCommand, error) {
	cmd := &visual.ControlCommand{
		Type:   visual.ControlCommandType(req.Type),
		X:      req.X,
		Y:      req.Y,
		Steps:  req.Steps,
		Events: req.Events,
		Nodes:  req.Nodes,
		Event:  req.Event,
	}

	switch cmd.Type {
	case visual.CommandPointerDown, visual.CommandPointerMove, visual.CommandPointerUp:
		if !finite(req.X) || !finite(req.Y) {
			return nil, &validationError{msg: "pointer coordinates must be finite"}
		}
	case visual.CommandPointerLeave, visual.CommandRetry, visual.CommandClearFilters, visual.CommandResetFilters:
	case visual.CommandKey:
		if req.Key == nil {
			return nil, &validationError{msg: "key command requires key"}
		}
		cmd.Key = req.Key
	case visual.CommandViewport:
		op, err := viewport.ParseOp(req.Op)
		if err != nil {
			return nil, &validationError{msg: err.Error()}
		}
		cmd.Op = op
	case visual.CommandResize:
		if !finite(req.Width) || !finite(req.Height) || req.Width <= 0 || req.Height <= 0 {
			return nil, &validationError{msg: "width and height must be positive"}
		}
		cmd.Width, cmd.Height, cmd.PixelRatio = req.Width, req.Height, req.PixelRatio
	case visual.CommandFilter:
		if req.Steps == nil && req.Events == nil {
			return nil, &validationError{msg: "filter command requires steps or events"}
		}
	case visual.CommandNodes:
		if req.Nodes == nil {
			return nil, &validationError{msg: "nodes command requires nodes"}
		}
	case visual.CommandSelectEvent:
		if len(req.Event) > 0 && !json.Valid(req.Event) {
			return nil, &validationError{msg: "event is not valid JSON"}
		}
	case visual.CommandSegment:
		switch req.Direction {
		case "":
			if req.Segment < 1 {
				return nil, &validationError{msg: "segment must be >= 1"}
			}
		case visual.SegmentNext, visual.SegmentPrev:
		default:
			return nil, &validationError{msg: "direction must be next or prev"}
		}
		cmd.Segment, cmd.Direction = req.Segment, req.Direction
	default:
		return nil, &validationError{msg: "Invalid command type: " + req.Type}
	}
	return cmd, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
