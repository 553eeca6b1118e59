package web

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/logic/control"
	"github.com/cjeanneret/PanView/internal/logic/motion"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
	"github.com/cjeanneret/PanView/internal/logic/pointer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	outboxSize     = 256
)

// FusedPublisher receives every fused orientation of every session.
type FusedPublisher interface {
	Publish(session string, o orientation.Orientation) error
}

// SessionOptions configures the coordinator of each new session.
type SessionOptions struct {
	Control control.Config
	// Platform is shared by every session; nil bridges each page's own
	// DeviceOrientation API instead.
	Platform  motion.Platform
	Publisher FusedPublisher
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID          string                  `json:"id"`
	Connected   string                  `json:"connected"`
	State       control.State           `json:"state"`
	Orientation orientation.Orientation `json:"orientation"`
}

// Session is one connected viewer page and its orientation coordinator.
type Session struct {
	id        string
	connected time.Time
	conn      *websocket.Conn
	events    *StatusBroadcaster
	publisher FusedPublisher

	surface *remoteSurface
	bridge  *browserPlatform
	coord   *control.Coordinator

	enabling  atomic.Bool // a page-initiated EnableMotion is in flight
	out       chan serverMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, caps Capabilities, opts SessionOptions, events *StatusBroadcaster) *Session {
	s := &Session{
		id:        uuid.NewString(),
		connected: time.Now(),
		conn:      conn,
		events:    events,
		publisher: opts.Publisher,
		out:       make(chan serverMessage, outboxSize),
		done:      make(chan struct{}),
	}
	s.surface = newRemoteSurface(func(id int, active bool) {
		s.send(captureMessage(id, active))
	})

	platform := opts.Platform
	if platform == nil {
		s.bridge = newBrowserPlatform(caps, s.requestPermission)
		platform = s.bridge
	}
	s.coord = control.New(opts.Control, platform, s.surface, s.onOrientation)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.id,
		Connected:   s.connected.Format(time.RFC3339),
		State:       s.coord.State(),
		Orientation: s.coord.Orientation(),
	}
}

// State returns the session's input state.
func (s *Session) State() control.State { return s.coord.State() }

// NeedsGesture reports whether enabling motion would open a browser prompt.
// Such prompts only succeed inside a user gesture on the page, so remote
// callers must leave these sessions alone.
func (s *Session) NeedsGesture() bool {
	st := s.coord.State()
	return st.MotionRequiresPermission && !st.MotionActive
}

// EnableMotion asks the session's coordinator to follow device motion and
// reports the outcome to the page and the status stream. Browser sessions
// wait for the page to answer the prompt.
func (s *Session) EnableMotion(ctx context.Context) control.MotionResult {
	result := s.coord.EnableMotion(ctx)
	debug.Permission(s.id, string(result))
	s.send(serverMessage{Type: msgMotionResult, Result: result})
	s.send(stateMessage(s.coord.State()))
	if s.events != nil {
		s.events.SessionEvent(s.id, "motion "+string(result))
	}
	return result
}

// Run serves the session until the page disconnects or ctx is done.
func (s *Session) Run(ctx context.Context) {
	go s.writePump()
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	st := s.coord.State()
	s.send(serverMessage{Type: msgHello, Session: s.id, State: &st})
	if s.events != nil {
		s.events.SessionEvent(s.id, "connected")
	}

	s.readLoop(ctx)
	s.Close()
}

// Close disconnects the page and releases the coordinator. It is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.bridge != nil {
			s.bridge.close()
		}
		s.coord.Dispose()
		_ = s.conn.Close()
		if s.events != nil {
			s.events.SessionEvent(s.id, "disconnected")
		}
		debug.Verbose("session %s closed", s.id)
	})
}

func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Warn("session "+s.id+" read failed", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handle(ctx, msg)
	}
}

func (s *Session) handle(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case msgPointer:
		kind, ok := pointer.ParseKind(msg.Kind)
		if !ok {
			s.send(serverMessage{Type: msgError, Message: "unknown pointer kind: " + msg.Kind})
			return
		}
		s.surface.dispatch(&pointer.Event{
			Kind:        kind,
			PointerID:   msg.ID,
			PointerType: pointer.Type(msg.PointerType),
			Buttons:     msg.Buttons,
			X:           msg.X,
			Y:           msg.Y,
		})

	case msgOrientation:
		if s.bridge == nil {
			debug.Trace("session %s: page orientation ignored, shared platform in use", s.id)
			return
		}
		s.bridge.deliver(motion.RawSample{Alpha: msg.Alpha, Beta: msg.Beta, Gamma: msg.Gamma})

	case msgPermissionResult:
		if s.bridge != nil {
			s.bridge.resolve(motion.ParsePermission(msg.State))
		}

	case msgEnableMotion:
		if !s.enabling.CompareAndSwap(false, true) {
			debug.Trace("session %s: enable_motion already in flight", s.id)
			return
		}
		// The prompt answer arrives through this read loop.
		go func() {
			defer s.enabling.Store(false)
			s.EnableMotion(ctx)
		}()

	default:
		s.send(serverMessage{Type: msgError, Message: "unknown message type: " + msg.Type})
	}
}

func (s *Session) requestPermission() error {
	select {
	case s.out <- serverMessage{Type: msgPermissionRequest}:
		return nil
	case <-s.done:
		return motion.ErrPromptUnavailable
	}
}

// onOrientation runs under the coordinator's lock.
func (s *Session) onOrientation(o orientation.Orientation) {
	debug.Orientation(s.id, o)
	select {
	case s.out <- orientationMessage(o):
	default:
		debug.Trace("session %s: outbox full, orientation dropped", s.id)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(s.id, o); err != nil {
			debug.Warn("publish fused orientation", err)
		}
	}
}

func (s *Session) send(msg serverMessage) {
	select {
	case s.out <- msg:
	case <-s.done:
	}
}

// writePump is the only writer of data frames on the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				debug.Warn("session "+s.id+" write failed", err)
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
