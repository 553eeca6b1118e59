package web

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/logic/motion"
)

// Capabilities is what a viewer page reports about its orientation API.
type Capabilities struct {
	Motion bool // DeviceOrientationEvent exists
	Prompt bool // DeviceOrientationEvent.requestPermission exists
}

// ParseCapabilities reads the motion and prompt flags of a /ws query.
func ParseCapabilities(q url.Values) Capabilities {
	return Capabilities{
		Motion: q.Get("motion") == "1",
		Prompt: q.Get("prompt") == "1",
	}
}

type pendingPrompt struct {
	done    chan struct{}
	result  motion.Permission
	waiters int // guarded by browserPlatform.mu
}

// browserPlatform is the motion.Platform backed by a viewer page. Samples
// and permission answers arrive over the session websocket.
type browserPlatform struct {
	caps    Capabilities
	request func() error

	mu      sync.Mutex
	subs    map[uint64]func(motion.RawSample)
	next    uint64
	pending *pendingPrompt
	closed  bool
	done    chan struct{}
}

var _ motion.Platform = (*browserPlatform)(nil)

// newBrowserPlatform creates a bridge; request sends the prompt to the page.
func newBrowserPlatform(caps Capabilities, request func() error) *browserPlatform {
	return &browserPlatform{
		caps:    caps,
		request: request,
		subs:    make(map[uint64]func(motion.RawSample)),
		done:    make(chan struct{}),
	}
}

func (b *browserPlatform) Supported() bool          { return b.caps.Motion }
func (b *browserPlatform) RequiresPermission() bool { return b.caps.Motion && b.caps.Prompt }

// RequestPermission asks the page and waits for its permission_result.
// Concurrent callers share one prompt. When the last waiter gives up the
// prompt is dropped, so the next call sends a fresh request.
func (b *browserPlatform) RequestPermission(ctx context.Context) (motion.Permission, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return motion.PermissionUnknown, motion.ErrPromptUnavailable
	}
	p := b.pending
	first := p == nil
	if first {
		p = &pendingPrompt{done: make(chan struct{})}
		b.pending = p
	}
	p.waiters++
	b.mu.Unlock()

	if first {
		if err := b.request(); err != nil {
			b.finish(p, motion.PermissionDenied)
			return motion.PermissionUnknown, fmt.Errorf("send permission request: %w", err)
		}
	}

	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		b.abandon(p)
		return motion.PermissionUnknown, ctx.Err()
	case <-b.done:
		return motion.PermissionUnknown, motion.ErrPromptUnavailable
	}
}

// resolve answers the pending prompt, if any.
func (b *browserPlatform) resolve(result motion.Permission) {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()
	if p == nil {
		debug.Trace("unsolicited permission result %s ignored", result)
		return
	}
	b.finish(p, result)
}

// abandon drops p once nobody waits on it any more. A late answer from the
// page then finds no pending prompt and is ignored.
func (b *browserPlatform) abandon(p *pendingPrompt) {
	b.mu.Lock()
	p.waiters--
	last := p.waiters == 0
	b.mu.Unlock()
	if last {
		debug.Verbose("permission prompt abandoned by its last waiter")
		b.finish(p, motion.PermissionUnknown)
	}
}

// finish completes p once; only the caller that detaches it closes it.
func (b *browserPlatform) finish(p *pendingPrompt, result motion.Permission) {
	b.mu.Lock()
	owned := b.pending == p
	if owned {
		b.pending = nil
	}
	b.mu.Unlock()
	if owned {
		p.result = result
		close(p.done)
	}
}

func (b *browserPlatform) Subscribe(fn func(motion.RawSample)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// deliver forwards a sample read from the page to every subscriber.
func (b *browserPlatform) deliver(raw motion.RawSample) {
	b.mu.Lock()
	fns := make([]func(motion.RawSample), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(raw)
	}
}

// close aborts pending prompts and drops subscribers.
func (b *browserPlatform) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	b.subs = make(map[uint64]func(motion.RawSample))
}
