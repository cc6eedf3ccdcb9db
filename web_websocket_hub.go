package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

type wsClient struct {
	id   string
	conn *websocket.Conn
}

type wsHub struct {
	upgrader  websocket.Upgrader
	clients   map[string]*wsClient
	register  chan *wsClient
	remove    chan string
	broadcast chan []byte
	// done is closed when run returns; readers stop reporting to the hub.
	done    chan struct{}
	readers sync.WaitGroup
}

func newHub() *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[string]*wsClient),
		register:  make(chan *wsClient),
		remove:    make(chan string),
		broadcast: make(chan []byte, 16),
		done:      make(chan struct{}),
	}
}

func (h *wsHub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				c.conn.Close()
				delete(h.clients, id)
			}
			return
		case c := <-h.register:
			h.clients[c.id] = c
			GetLogger().Debugf("WebSocket client %s connected (%d total)", c.id, len(h.clients))
		case id := <-h.remove:
			if c, ok := h.clients[id]; ok {
				delete(h.clients, id)
				c.conn.Close()
			}
		case msg := <-h.broadcast:
			for id, c := range h.clients {
				c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					GetLogger().Warnf("Failed to send frame to WebSocket client %s: %v", id, err)
					delete(h.clients, id)
					c.conn.Close()
				}
			}
		}
	}
}

func (h *wsHub) handle(ws *WebServer, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		GetLogger().Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	c := &wsClient{id: uuid.NewString(), conn: conn}

	if frame := ws.frame(); frame != nil {
		if data, err := json.Marshal(frame); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
	}
	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	case <-h.done:
		conn.Close()
		return
	}

	h.readers.Add(1)
	go func() {
		defer h.readers.Done()
		defer func() {
			select {
			case h.remove <- c.id:
			case <-h.done:
			}
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					GetLogger().Warnf("WebSocket error: %v", err)
				}
				return
			}

			var req controlRequest
			if err := json.Unmarshal(message, &req); err != nil {
				GetLogger().Debugf("WebSocket client %s sent invalid request: %v", c.id, err)
				continue
			}
			cmd, err := ws.processControlRequest(&req)
			if err != nil {
				GetLogger().Debugf("WebSocket client %s: %v", c.id, err)
				continue
			}
			if !ws.queueCommand(*cmd) {
				GetLogger().Debugf("Command queue full, dropped %s from %s", cmd.Type, c.id)
			}
		}
	}()
}

// broadcastFrame queues frame for every client, dropping it when the hub
// is behind; the next frame supersedes it anyway.
func (h *wsHub) broadcastFrame(frame *Frame) {
	if frame == nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		GetLogger().Errorf("Failed to marshal frame for WebSocket: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		GetLogger().Debugf("WebSocket broadcast queue full, dropping frame %d", frame.Seq)
	}
}
