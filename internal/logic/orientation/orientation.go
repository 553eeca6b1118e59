// Package orientation holds the viewing direction value shared by the
// input sources, the coordinator and every render sink.
package orientation

import "math"

const (
	twoPi = 2 * math.Pi

	// DegToRad converts degrees to radians.
	DegToRad = math.Pi / 180.0
	// RadToDeg converts radians to degrees.
	RadToDeg = 180.0 / math.Pi
)

// Orientation is a viewing direction in radians.
// Yaw maps to horizontal look, pitch to vertical look.
type Orientation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Add returns the component-wise sum of o and other.
func (o Orientation) Add(other Orientation) Orientation {
	return Orientation{
		Yaw:   o.Yaw + other.Yaw,
		Pitch: o.Pitch + other.Pitch,
	}
}

// Degrees returns yaw and pitch in degrees, for logs and displays.
func (o Orientation) Degrees() (yaw, pitch float64) {
	return o.Yaw * RadToDeg, o.Pitch * RadToDeg
}

// NormalizeAngle maps any angle in radians into (-π, π].
// Large accumulated values are reduced with a full modulo, not a single wrap.
func NormalizeAngle(a float64) float64 {
	if a > -math.Pi && a <= math.Pi {
		return a
	}
	r := math.Mod(a+math.Pi, twoPi)
	if r <= 0 {
		r += twoPi
	}
	return r - math.Pi
}

// NormalizeDegrees maps any angle in degrees into (-180, 180].
func NormalizeDegrees(d float64) float64 {
	if d > -180 && d <= 180 {
		return d
	}
	r := math.Mod(d+180, 360)
	if r <= 0 {
		r += 360
	}
	return r - 180
}

// Clamp restricts v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
