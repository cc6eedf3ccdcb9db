package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Readm/consensus_trace/hooks"
	"github.com/Readm/consensus_trace/visual"
)

// WebServer provides HTTP endpoints for the trace view and its controls.
type WebServer struct {
	mu          sync.RWMutex
	latestFrame *Frame
	sink        visual.Sink
	metrics     *Metrics
	plugins     *hooks.PluginBroker
	staticDir   string
	hub         *wsHub
	server      *http.Server
}

// NewWebServer creates a new web server instance. Commands are rejected
// until a sink is bound.
func NewWebServer(addr string, metrics *Metrics) *WebServer {
	ws := &WebServer{
		metrics: metrics,
		hub:     newHub(),
	}
	ws.server = &http.Server{
		Addr:              addr,
		Handler:           NewRouter(ws),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// SetStaticDir serves the browser client from dir.
func (ws *WebServer) SetStaticDir(dir string) {
	ws.mu.Lock()
	ws.staticDir = dir
	ws.mu.Unlock()
}

// SetPlugins exposes the plugin catalog of broker on /api/plugins.
func (ws *WebServer) SetPlugins(broker *hooks.PluginBroker) {
	ws.mu.Lock()
	ws.plugins = broker
	ws.mu.Unlock()
}

// Bind routes accepted control commands to sink.
func (ws *WebServer) Bind(sink visual.Sink) {
	ws.mu.Lock()
	ws.sink = sink
	ws.mu.Unlock()
}

// Handler returns the HTTP handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go ws.hub.run(ctx)

	errCh := make(chan error, 1)
	go func() {
		GetLogger().Infof("web server listening on http://%s", ws.server.Addr)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.server.Shutdown(shutdownCtx)
}

// UpdateFrame stores frame as the latest one and pushes it to websocket clients.
func (ws *WebServer) UpdateFrame(frame *Frame) {
	if frame == nil {
		return
	}
	ws.mu.Lock()
	ws.latestFrame = frame
	ws.mu.Unlock()
	ws.hub.broadcastFrame(frame)
}

func (ws *WebServer) frame() *Frame {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.latestFrame
}

func (ws *WebServer) queueCommand(cmd visual.ControlCommand) bool {
	ws.mu.RLock()
	sink := ws.sink
	ws.mu.RUnlock()
	if sink == nil {
		return false
	}
	return sink.Submit(cmd)
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
