package web

import (
	"sync"

	"github.com/cjeanneret/PanView/internal/logic/pointer"
)

type listener struct {
	id uint64
	h  pointer.Handler
}

// remoteSurface is the pointer.Surface of a viewer page. Events arrive over
// the websocket; capture changes are mirrored back to the page through notify.
type remoteSurface struct {
	notify func(id int, active bool)

	mu        sync.Mutex
	next      uint64
	listeners map[pointer.Kind][]listener
	captured  map[int]bool
}

var _ pointer.Surface = (*remoteSurface)(nil)

func newRemoteSurface(notify func(id int, active bool)) *remoteSurface {
	return &remoteSurface{
		notify:    notify,
		listeners: make(map[pointer.Kind][]listener),
		captured:  make(map[int]bool),
	}
}

func (s *remoteSurface) Listen(k pointer.Kind, h pointer.Handler) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[k] = append(s.listeners[k], listener{id: id, h: h})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ls := s.listeners[k]
		for i, l := range ls {
			if l.id == id {
				s.listeners[k] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

func (s *remoteSurface) SetPointerCapture(id int) {
	s.mu.Lock()
	already := s.captured[id]
	s.captured[id] = true
	s.mu.Unlock()
	if !already && s.notify != nil {
		s.notify(id, true)
	}
}

func (s *remoteSurface) ReleasePointerCapture(id int) {
	s.mu.Lock()
	held := s.captured[id]
	delete(s.captured, id)
	s.mu.Unlock()
	if held && s.notify != nil {
		s.notify(id, false)
	}
}

func (s *remoteSurface) HasPointerCapture(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured[id]
}

// dispatch runs the handlers registered for ev.Kind, in registration order.
func (s *remoteSurface) dispatch(ev *pointer.Event) {
	s.mu.Lock()
	ls := append([]listener(nil), s.listeners[ev.Kind]...)
	s.mu.Unlock()

	for _, l := range ls {
		l.h(ev)
	}
}

func (s *remoteSurface) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ls := range s.listeners {
		n += len(ls)
	}
	return n
}
