package sensor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/PanView/internal/logic/motion"
)

// Mock is an ambient platform producing smoothly changing orientation,
// used when no real sensor is available.
type Mock struct {
	interval time.Duration
	start    time.Time
}

var _ motion.Platform = (*Mock)(nil)

// NewMock creates a mock platform emitting one sample per interval.
func NewMock(interval time.Duration) *Mock {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Mock{interval: interval, start: time.Now()}
}

func (m *Mock) Supported() bool          { return true }
func (m *Mock) RequiresPermission() bool { return false }

func (m *Mock) RequestPermission(context.Context) (motion.Permission, error) {
	return motion.PermissionGranted, nil
}

// Subscribe starts a ticker goroutine for fn. The returned function stops
// it without waiting for an in-flight call.
func (m *Mock) Subscribe(fn func(motion.RawSample)) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				fn(SampleAt(now.Sub(m.start)))
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// SampleAt returns the synthetic orientation after elapsed time:
// a slow 30°/s heading sweep with gentle tilt oscillations.
func SampleAt(elapsed time.Duration) motion.RawSample {
	s := elapsed.Seconds()
	return motion.NewRawSample(
		math.Mod(s*30, 360),
		15*math.Cos(s*0.7),
		20*math.Sin(s),
	)
}
