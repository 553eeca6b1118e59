// Package motion turns a platform's device orientation stream into
// orientation samples relative to the pose the device had when the
// stream started. It also owns the sensor permission lifecycle.
package motion

import (
	"context"
	"math"
	"sync"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
)

// maxSensorPitch bounds the pitch reported by a Source.
const maxSensorPitch = math.Pi / 2

// Source is the motion input of a viewer. It is safe for concurrent use.
type Source struct {
	platform       Platform
	onSample       func(orientation.Orientation)
	requiresPrompt bool

	// delivery is held from the active check until onSample returns, so
	// Stop waits out a sample already in flight. Order: delivery, then mu.
	delivery sync.Mutex

	mu          sync.Mutex
	active      bool
	permission  Permission
	baseline    orientation.Option // degrees: Yaw=alpha, Pitch=beta
	unsubscribe func()
	generation  uint64
}

// NewSource creates an inactive Source reading from platform.
// onSample receives every valid sample once the source is started.
func NewSource(platform Platform, onSample func(orientation.Orientation)) *Source {
	if platform == nil {
		platform = Unsupported{}
	}
	return &Source{
		platform:       platform,
		onSample:       onSample,
		requiresPrompt: platform.RequiresPermission(),
	}
}

// Supported reports whether the platform has an orientation sensor.
func (s *Source) Supported() bool {
	return s.platform.Supported()
}

// RequiresPermission reports whether sensor access needs an explicit prompt.
// It is fixed when the Source is created.
func (s *Source) RequiresPermission() bool {
	return s.requiresPrompt
}

// Active reports whether the source is subscribed to the platform.
func (s *Source) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Denied reports whether the last permission request was refused.
func (s *Source) Denied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission == PermissionDenied
}

// Permission returns the current permission state.
func (s *Source) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// RequestPermission asks for sensor access and reports whether it was granted.
// Platform errors count as a denial and are never returned. A denied source
// prompts again on the next call.
func (s *Source) RequestPermission(ctx context.Context) bool {
	if !s.Supported() {
		return false
	}

	s.mu.Lock()
	if s.permission == PermissionGranted {
		s.mu.Unlock()
		return true
	}
	if !s.requiresPrompt {
		s.permission = PermissionGranted
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	// The prompt may wait on the user; no lock is held meanwhile.
	result, err := s.platform.RequestPermission(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		debug.Warn("device orientation permission error", err)
		s.permission = PermissionDenied
		return false
	}
	if result == PermissionGranted {
		s.permission = PermissionGranted
		return true
	}
	s.permission = PermissionDenied
	return false
}

// Start subscribes to the platform. It is a no-op when unsupported or
// already active; otherwise the next valid sample becomes the baseline.
func (s *Source) Start() {
	if !s.Supported() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.baseline = orientation.None()
	s.generation++
	gen := s.generation
	s.unsubscribe = s.platform.Subscribe(func(raw RawSample) {
		s.handle(gen, raw)
	})
	s.active = true
	debug.Verbose("motion source started (generation %d)", gen)
}

// Stop unsubscribes from the platform and forgets the baseline.
// It is a no-op when inactive. Once it returns no further sample reaches
// onSample. It must not be called from onSample.
func (s *Source) Stop() {
	s.delivery.Lock()
	defer s.delivery.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.active = false
	s.baseline = orientation.None()
	debug.Verbose("motion source stopped")
}

// Dispose releases the platform subscription.
func (s *Source) Dispose() {
	s.Stop()
}

func (s *Source) handle(gen uint64, raw RawSample) {
	if raw.Alpha == nil || raw.Beta == nil {
		debug.Trace("dropping orientation sample with missing axes")
		return
	}
	alpha, beta := *raw.Alpha, *raw.Beta
	if !finite(alpha) || !finite(beta) {
		debug.Trace("dropping non-finite orientation sample")
		return
	}

	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.Lock()
	if !s.active || gen != s.generation {
		s.mu.Unlock()
		return
	}
	base, ok := s.baseline.Get()
	if !ok {
		base = orientation.Orientation{Yaw: alpha, Pitch: beta}
		s.baseline = orientation.Some(base)
	}
	s.mu.Unlock()

	sample := Relative(base, alpha, beta)
	if s.onSample != nil {
		s.onSample(sample)
	}
}

// Relative converts a raw alpha/beta reading into radians relative to base
// (whose Yaw and Pitch hold the baseline alpha and beta in degrees).
// Each axis is normalized into (-180°, 180°] and pitch is clamped to ±90°.
func Relative(base orientation.Orientation, alpha, beta float64) orientation.Orientation {
	yaw := orientation.NormalizeDegrees(alpha-base.Yaw) * orientation.DegToRad
	pitch := orientation.NormalizeDegrees(beta-base.Pitch) * orientation.DegToRad
	return orientation.Orientation{
		Yaw:   yaw,
		Pitch: orientation.Clamp(pitch, -maxSensorPitch, maxSensorPitch),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
