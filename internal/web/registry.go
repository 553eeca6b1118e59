package web

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/PanView/internal/debug"
)

// Registry tracks the live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].connected.Equal(out[j].connected) {
			return out[i].id < out[j].id
		}
		return out[i].connected.Before(out[j].connected)
	})
	return out
}

// List returns session snapshots, oldest first.
func (r *Registry) List() []SessionInfo {
	sessions := r.snapshot()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// AnyMotionActive reports whether some session follows device motion.
func (r *Registry) AnyMotionActive() bool {
	for _, s := range r.snapshot() {
		if s.State().MotionActive {
			return true
		}
	}
	return false
}

// AnyMotionDenied reports whether some session was refused sensor access.
func (r *Registry) AnyMotionDenied() bool {
	for _, s := range r.snapshot() {
		if s.State().MotionDenied {
			return true
		}
	}
	return false
}

// EnableMotionAll enables motion on every session concurrently and waits
// for all of them to settle. Sessions that need a user gesture are skipped.
func (r *Registry) EnableMotionAll(ctx context.Context) {
	var g errgroup.Group
	for _, s := range r.snapshot() {
		if s.NeedsGesture() {
			debug.Verbose("session %s skipped: motion needs a gesture on the page", s.id)
			continue
		}
		g.Go(func() error {
			s.EnableMotion(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// CloseAll disconnects every session.
func (r *Registry) CloseAll() {
	for _, s := range r.snapshot() {
		s.Close()
	}
}
