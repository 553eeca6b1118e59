package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/PanView/internal/debug"
)

// motionTimeout bounds POST /sessions/{id}/motion, which may wait for a
// person to answer the browser prompt.
const motionTimeout = 60 * time.Second

// ViewerConfig is what GET /config tells the viewer page.
type ViewerConfig struct {
	MaxPitch         float64 `json:"max_pitch"`
	YawSensitivity   float64 `json:"yaw_sensitivity"`
	PitchSensitivity float64 `json:"pitch_sensitivity"`
	MotionSource     string  `json:"motion_source"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Sessions    *Registry
	Viewer      ViewerConfig
	options     SessionOptions
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers; opts configures the sessions opened on /ws.
func NewHandlers(broadcaster *StatusBroadcaster, sessions *Registry, viewer ViewerConfig, opts SessionOptions, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Sessions:    sessions,
		Viewer:      viewer,
		options:     opts,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleConfig returns the viewer parameters as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Viewer)
}

// ServeIndex serves the viewer page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleWebSocket upgrades GET /ws and serves one viewer session until it
// disconnects.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	caps := ParseCapabilities(r.URL.Query())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Warn("websocket upgrade failed", err)
		return
	}

	s := newSession(conn, caps, h.options, h.Broadcaster)
	h.Sessions.Add(s)
	defer h.Sessions.Remove(s.ID())

	debug.Info("session %s connected from %s (motion=%t prompt=%t)", s.ID(), r.RemoteAddr, caps.Motion, caps.Prompt)
	s.Run(r.Context())
	debug.Info("session %s disconnected", s.ID())
}

// HandleSessions lists the live sessions.
func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sessions.List())
}

// HandleSessionMotion handles POST /sessions/{id}/motion. Sessions whose
// browser must prompt the user get 409.
func (h *Handlers) HandleSessionMotion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if s.NeedsGesture() {
		http.Error(w, "session needs a user gesture to enable motion", http.StatusConflict)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), motionTimeout)
	defer cancel()
	result := s.EnableMotion(ctx)
	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
