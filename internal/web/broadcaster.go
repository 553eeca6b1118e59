package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Status event kinds.
const (
	EventLog     = "log"
	EventSession = "session"
)

// StatusEvent is one message of the status stream.
type StatusEvent struct {
	Time    string `json:"t"`
	Kind    string `json:"kind"`
	Level   string `json:"l,omitempty"`
	Session string `json:"session,omitempty"`
	Msg     string `json:"msg"`
}

// StatusBroadcaster fans status events out to SSE clients. Slow clients
// miss events rather than stall publishers.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a broadcaster with no clients.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{clients: make(map[chan string]struct{})}
}

// Subscribe returns a channel of JSON-encoded events and its cleanup
// function, which closes the channel and may be called more than once.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish stamps evt if needed and sends it to every client.
func (b *StatusBroadcaster) Publish(evt StatusEvent) {
	if evt.Time == "" {
		evt.Time = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Broadcast publishes a log line at level.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.Publish(StatusEvent{Kind: EventLog, Level: level, Msg: msg})
}

// SessionEvent publishes a session lifecycle or motion event.
func (b *StatusBroadcaster) SessionEvent(session, msg string) {
	b.Publish(StatusEvent{Kind: EventSession, Level: "info", Session: session, Msg: msg})
}

// BroadcastWriter adapts b to io.Writer so logs can be teed into the
// status stream, one event per non-empty line.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.b.Broadcast(levelOf(line), line)
		}
	}
	return len(p), nil
}

// levelOf picks the level out of a console or JSON log line.
func levelOf(line string) string {
	for _, lvl := range []string{"error", "warn", "debug"} {
		if strings.Contains(line, "\t"+strings.ToUpper(lvl)+"\t") || strings.Contains(line, `"level":"`+lvl+`"`) {
			return lvl
		}
	}
	return "info"
}
