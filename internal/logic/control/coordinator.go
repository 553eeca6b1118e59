// Package control fuses the motion and pointer inputs of one viewer into
// a single bounded orientation.
package control

import (
	"context"
	"math"
	"sync"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/logic/motion"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
	"github.com/cjeanneret/PanView/internal/logic/pointer"
)

// DefaultMaxPitchRatio is the pitch limit as a fraction of π.
const DefaultMaxPitchRatio = 0.45

// Config holds the per-viewer limits and sensitivities.
type Config struct {
	MaxPitch    float64 // radians, applied symmetrically
	Sensitivity pointer.Sensitivity
}

// DefaultConfig returns a ±81° pitch limit and the stock drag sensitivities.
func DefaultConfig() Config {
	return Config{
		MaxPitch:    math.Pi * DefaultMaxPitchRatio,
		Sensitivity: pointer.DefaultSensitivity,
	}
}

// MotionResult is the outcome of EnableMotion.
type MotionResult string

const (
	MotionRunning     MotionResult = "running"
	MotionDenied      MotionResult = "denied"
	MotionUnsupported MotionResult = "unsupported"
)

// State is a read-only snapshot for status displays.
type State struct {
	MotionSupported          bool `json:"motion_supported"`
	MotionActive             bool `json:"motion_active"`
	MotionDenied             bool `json:"motion_denied"`
	MotionRequiresPermission bool `json:"motion_requires_permission"`
}

// Coordinator owns the fused orientation of one viewer.
type Coordinator struct {
	cfg      Config
	motion   *motion.Source
	pointer  *pointer.Source
	onChange func(orientation.Orientation)

	mu     sync.Mutex
	sensor orientation.Option
	offset orientation.Orientation
	fused  orientation.Orientation
}

// New wires a Coordinator to a motion platform and a pointer surface.
// onChange is called with every new fused orientation; it must not call
// back into the Coordinator. Ambient motion platforms are started at once.
// Zero limits and sensitivities take their defaults.
func New(cfg Config, platform motion.Platform, surface pointer.Surface, onChange func(orientation.Orientation)) *Coordinator {
	if cfg.MaxPitch <= 0 {
		cfg.MaxPitch = DefaultConfig().MaxPitch
	}
	if cfg.Sensitivity == (pointer.Sensitivity{}) {
		cfg.Sensitivity = pointer.DefaultSensitivity
	}
	c := &Coordinator{
		cfg:      cfg,
		onChange: onChange,
	}
	c.motion = motion.NewSource(platform, c.SensorSample)
	if surface != nil {
		c.pointer = pointer.NewSource(surface, cfg.Sensitivity, c.PointerDelta)
	}

	if c.motion.Supported() && !c.motion.RequiresPermission() {
		c.motion.Start()
	}
	return c
}

// PointerDelta adds a drag delta to the pointer offset. The offset pitch is
// clamped so it never stores rotation beyond the visible limit.
func (c *Coordinator) PointerDelta(deltaYaw, deltaPitch float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset.Yaw += deltaYaw
	c.offset.Pitch = orientation.Clamp(c.offset.Pitch+deltaPitch, -c.cfg.MaxPitch, c.cfg.MaxPitch)
	c.emitLocked()
}

// SensorSample replaces the latest motion sample.
func (c *Coordinator) SensorSample(o orientation.Orientation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensor = orientation.Some(o)
	c.emitLocked()
}

// EnableMotion requests sensor access and starts the motion stream.
// Call it in response to a user gesture. Repeated calls are safe.
func (c *Coordinator) EnableMotion(ctx context.Context) MotionResult {
	if !c.motion.Supported() {
		return MotionUnsupported
	}
	if !c.motion.RequestPermission(ctx) {
		return MotionDenied
	}
	c.motion.Start()

	c.mu.Lock()
	c.emitLocked()
	c.mu.Unlock()
	return MotionRunning
}

// State returns the motion status without changing anything.
func (c *Coordinator) State() State {
	return State{
		MotionSupported:          c.motion.Supported(),
		MotionActive:             c.motion.Active(),
		MotionDenied:             c.motion.Denied(),
		MotionRequiresPermission: c.motion.RequiresPermission(),
	}
}

// Orientation returns the last fused orientation.
func (c *Coordinator) Orientation() orientation.Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fused
}

// Dispose stops the motion stream and removes pointer listeners.
func (c *Coordinator) Dispose() {
	c.motion.Dispose()
	if c.pointer != nil {
		c.pointer.Dispose()
	}
	debug.Verbose("coordinator disposed")
}

// emitLocked must be called with mu held.
func (c *Coordinator) emitLocked() {
	c.fused = Fuse(c.sensor, c.offset, c.cfg.MaxPitch)
	if c.onChange != nil {
		c.onChange(c.fused)
	}
}

// Fuse adds the pointer offset to the sensor sample (zero when absent),
// normalizes yaw into (-π, π] and clamps pitch to ±maxPitch.
func Fuse(sensor orientation.Option, offset orientation.Orientation, maxPitch float64) orientation.Orientation {
	sum := sensor.OrZero().Add(offset)
	return orientation.Orientation{
		Yaw:   orientation.NormalizeAngle(sum.Yaw),
		Pitch: orientation.Clamp(sum.Pitch, -maxPitch, maxPitch),
	}
}
