// Package pointer converts drag gestures on a surface into relative
// yaw/pitch adjustments.
package pointer

import (
	"sync"

	"github.com/cjeanneret/PanView/internal/debug"
)

// Sensitivity is the rotation in radians per pixel of drag.
type Sensitivity struct {
	Yaw   float64
	Pitch float64
}

// DefaultSensitivity is tuned for phone-sized touch screens.
var DefaultSensitivity = Sensitivity{Yaw: 0.005, Pitch: 0.0035}

// Listener receives rotation deltas in radians.
type Listener func(deltaYaw, deltaPitch float64)

// Source tracks one drag at a time on a Surface. It is safe for concurrent use.
type Source struct {
	surface     Surface
	sensitivity Sensitivity
	listener    Listener

	mu         sync.Mutex
	active     bool
	pointerID  int
	lastX      float64
	lastY      float64
	removeDown func()
	gesture    []func()
	disposed   bool
}

// NewSource starts listening for drag starts on surface.
func NewSource(surface Surface, sensitivity Sensitivity, listener Listener) *Source {
	s := &Source{
		surface:     surface,
		sensitivity: sensitivity,
		listener:    listener,
	}
	s.removeDown = surface.Listen(Down, s.onDown)
	return s
}

// Active reports whether a drag is in progress.
func (s *Source) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Dispose removes every listener the source registered. Safe without a drag.
func (s *Source) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeGesture()
	if s.active && s.surface.HasPointerCapture(s.pointerID) {
		s.surface.ReleasePointerCapture(s.pointerID)
	}
	s.active = false
	if s.removeDown != nil {
		s.removeDown()
		s.removeDown = nil
	}
	s.disposed = true
}

func (s *Source) onDown(ev *Event) {
	debug.Pointer(ev.Kind.String(), ev.PointerID, ev.X, ev.Y)
	if ev.PointerType == Mouse && ev.Buttons != PrimaryButton {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.active {
		return
	}
	s.active = true
	s.pointerID = ev.PointerID
	s.lastX = ev.X
	s.lastY = ev.Y
	s.surface.SetPointerCapture(ev.PointerID)
	s.gesture = append(s.gesture,
		s.surface.Listen(Move, s.onMove),
		s.surface.Listen(Up, s.onEnd),
		s.surface.Listen(Cancel, s.onEnd),
	)
}

func (s *Source) onMove(ev *Event) {
	s.mu.Lock()
	if !s.active || ev.PointerID != s.pointerID {
		s.mu.Unlock()
		return
	}
	ev.PreventDefault()
	dx := ev.X - s.lastX
	dy := ev.Y - s.lastY
	s.lastX = ev.X
	s.lastY = ev.Y
	s.mu.Unlock()

	debug.Pointer(ev.Kind.String(), ev.PointerID, ev.X, ev.Y)
	if s.listener != nil {
		s.listener(-dx*s.sensitivity.Yaw, -dy*s.sensitivity.Pitch)
	}
}

func (s *Source) onEnd(ev *Event) {
	debug.Pointer(ev.Kind.String(), ev.PointerID, ev.X, ev.Y)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || ev.PointerID != s.pointerID {
		return
	}
	s.active = false
	s.removeGesture()
	if s.surface.HasPointerCapture(ev.PointerID) {
		s.surface.ReleasePointerCapture(ev.PointerID)
	}
}

// removeGesture must be called with mu held.
func (s *Source) removeGesture() {
	for _, remove := range s.gesture {
		remove()
	}
	s.gesture = nil
}
