package main

import "net/http"

// Router wires HTTP/WS handlers for the server.
type Router struct {
	mux *http.ServeMux
}

// NewRouter constructs router with provided handlers.
func NewRouter(server *WebServer) *Router {
	mux := http.NewServeMux()
	server.registerHandlers(mux)
	return &Router{mux: mux}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r == nil || r.mux == nil {
		http.NotFound(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

func (ws *WebServer) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/frame", ws.handleFrame)
	mux.HandleFunc("/api/frame.png", ws.handleFramePNG)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/plugins", ws.handlePlugins)
	mux.HandleFunc("/api/control", ws.handleControl)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.hub.handle(ws, w, r)
	})
	if ws.metrics != nil {
		mux.Handle("/metrics", ws.metrics.Handler())
	}
	mux.HandleFunc("/", ws.handleStatic)
}

func (ws *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	dir := ws.staticDir
	ws.mu.RUnlock()
	if dir == "" {
		http.NotFound(w, r)
		return
	}
	http.FileServer(http.Dir(dir)).ServeHTTP(w, r)
}
