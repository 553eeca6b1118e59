package motion

import (
	"context"
	"errors"
)

// Permission is the sensor access state of a Source.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ParsePermission maps a platform permission answer to a Permission.
// Anything other than "granted" or "denied" is unknown.
func ParsePermission(s string) Permission {
	switch s {
	case "granted":
		return PermissionGranted
	case "denied":
		return PermissionDenied
	default:
		return PermissionUnknown
	}
}

// ErrPromptUnavailable is returned by platforms that cannot issue a
// permission prompt, e.g. because the viewer disconnected.
var ErrPromptUnavailable = errors.New("motion: permission prompt unavailable")

// RawSample is one device orientation event in degrees.
// Alpha is the compass heading, Beta the front-back tilt and Gamma the
// left-right tilt. A nil axis means the platform did not report it.
type RawSample struct {
	Alpha *float64 `json:"alpha"`
	Beta  *float64 `json:"beta"`
	Gamma *float64 `json:"gamma"`
}

// NewRawSample builds a sample with all three axes present.
func NewRawSample(alpha, beta, gamma float64) RawSample {
	return RawSample{Alpha: &alpha, Beta: &beta, Gamma: &gamma}
}

// Platform describes the device orientation capability of the environment
// a viewer runs in.
type Platform interface {
	// Supported reports whether the platform exposes orientation events at all.
	Supported() bool
	// RequiresPermission reports whether access is gated behind an explicit,
	// user-triggered prompt.
	RequiresPermission() bool
	// RequestPermission issues the platform prompt and blocks until it is
	// answered or ctx is done.
	RequestPermission(ctx context.Context) (Permission, error)
	// Subscribe registers fn for orientation events and returns the function
	// that removes it. fn must not be called synchronously from Subscribe.
	Subscribe(fn func(RawSample)) (unsubscribe func())
}

// Unsupported is a Platform without an orientation sensor.
type Unsupported struct{}

func (Unsupported) Supported() bool          { return false }
func (Unsupported) RequiresPermission() bool { return false }
func (Unsupported) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, ErrPromptUnavailable
}
func (Unsupported) Subscribe(func(RawSample)) func() { return func() {} }
