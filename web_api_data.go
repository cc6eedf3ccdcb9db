package main

import (
	"encoding/json"
	"image"
	"net/http"
	"strconv"

	"github.com/Readm/consensus_trace/render/raster"
)

func (ws *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame := ws.frame()
	if frame == nil {
		http.Error(w, "No frame available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frame); err != nil {
		http.Error(w, "Failed to encode frame", http.StatusInternalServerError)
	}
}

// handleFramePNG rasterizes the latest frame. ?width=N returns a thumbnail
// at most N pixels wide.
func (ws *WebServer) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame := ws.frame()
	if frame == nil {
		http.Error(w, "No frame available", http.StatusNotFound)
		return
	}

	bw, bh := frame.Size.BackingStore()
	img := raster.Draw(bw, bh, frame.Size.Ratio(), frame.Commands)
	var out image.Image = img
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "width must be a positive integer", http.StatusBadRequest)
			return
		}
		out = raster.Thumbnail(img, n)
	}

	w.Header().Set("Content-Type", "image/png")
	if err := raster.EncodePNG(w, out); err != nil {
		GetLogger().Warnf("Failed to encode frame png: %v", err)
	}
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame := ws.frame()
	if frame == nil {
		http.Error(w, "No stats available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frame.Stats); err != nil {
		http.Error(w, "Failed to encode stats", http.StatusInternalServerError)
	}
}

func (ws *WebServer) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ws.mu.RLock()
	broker := ws.plugins
	ws.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(broker.ListAllPlugins()); err != nil {
		http.Error(w, "Failed to encode plugins", http.StatusInternalServerError)
	}
}
