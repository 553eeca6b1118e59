// Package gpio abstracts the Raspberry Pi header used by the indicator
// panel so the service also runs on a development machine.
package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/PanView/internal/debug"
)

// Level is the logical state of a pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// PinMode selects the direction of a pin.
type PinMode int

const (
	Input PinMode = iota
	Output
	// InputPullUp is an input with the internal pull-up enabled, for
	// buttons wired to ground.
	InputPullUp
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputPullUp:
		return "input-pullup"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Driver controls GPIO pins.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver returns a MockDriver when mock is set, the go-rpio driver
// otherwise.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("using mock GPIO driver")
		return NewMockDriver(), nil
	}
	return NewRPiDriver()
}

// MockDriver keeps pin state in memory. Input levels can be forced with
// SetInput to simulate a button.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	closed bool
}

// NewMockDriver creates an empty mock.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		modes:  make(map[int]PinMode),
		levels: make(map[int]Level),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	if mode == InputPullUp {
		m.levels[pin] = High
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode, ok := m.modes[pin]; ok && mode != Output {
		return fmt.Errorf("pin %d is configured as %s", pin, mode)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := m.levels[pin]
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

// SetInput forces the level returned by ReadPin.
func (m *MockDriver) SetInput(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// Level returns the last level written to or forced on pin.
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO close (mock)")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
