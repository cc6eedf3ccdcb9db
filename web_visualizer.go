package main

import "github.com/Readm/consensus_trace/visual"

// WebVisualizer bridges the session with the web server.
type WebVisualizer struct {
	headless bool
	server   *WebServer
}

// NewWebVisualizer wraps server; the caller starts it.
func NewWebVisualizer(server *WebServer) *WebVisualizer {
	return &WebVisualizer{server: server}
}

// Server returns the underlying web server.
func (w *WebVisualizer) Server() *WebServer {
	return w.server
}

// SetHeadless switches headless state.
func (w *WebVisualizer) SetHeadless(headless bool) {
	w.headless = headless
}

// IsHeadless returns whether visualizer runs without UI.
func (w *WebVisualizer) IsHeadless() bool {
	return w.headless
}

// PublishFrame updates the server with the latest frame.
func (w *WebVisualizer) PublishFrame(frame any) {
	f, ok := frame.(*Frame)
	if !ok || w.server == nil {
		return
	}
	w.server.UpdateFrame(f)
}

// Bind routes browser input to sink.
func (w *WebVisualizer) Bind(sink visual.Sink) {
	if w.server != nil {
		w.server.Bind(sink)
	}
}
