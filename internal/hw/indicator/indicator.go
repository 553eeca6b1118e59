// Package indicator drives a small front panel: one LED lit while any
// viewer follows device motion, one LED lit while any viewer was refused
// sensor access, and a push button that enables motion for every viewer.
package indicator

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/hw/gpio"
)

// Status is what the panel reflects and acts on.
type Status interface {
	AnyMotionActive() bool
	AnyMotionDenied() bool
	EnableMotionAll(ctx context.Context)
}

// Pins locates the panel on the header.
type Pins struct {
	ActiveLED int
	DeniedLED int
	Button    int
}

// Panel polls the button and refreshes the LEDs.
type Panel struct {
	gpio   gpio.Driver
	pins   Pins
	status Status
	poll   time.Duration

	active  gpio.Level
	denied  gpio.Level
	pressed bool
}

// NewPanel configures the LED pins as outputs (off) and the button as a
// pull-up input wired to ground.
func NewPanel(g gpio.Driver, pins Pins, status Status, poll time.Duration) (*Panel, error) {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	for _, pin := range []int{pins.ActiveLED, pins.DeniedLED} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup LED pin %d: %w", pin, err)
		}
		if err := g.WritePin(pin, gpio.Low); err != nil {
			return nil, fmt.Errorf("reset LED pin %d: %w", pin, err)
		}
	}
	if err := g.SetupPin(pins.Button, gpio.InputPullUp); err != nil {
		return nil, fmt.Errorf("setup button pin %d: %w", pins.Button, err)
	}
	return &Panel{gpio: g, pins: pins, status: status, poll: poll}, nil
}

// Run polls until ctx is done, then switches the LEDs off.
func (p *Panel) Run(ctx context.Context) error {
	debug.Verbose("indicator panel running (poll %v)", p.poll)
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.off()
			return nil
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				debug.Warn("indicator poll failed", err)
			}
		}
	}
}

func (p *Panel) tick(ctx context.Context) error {
	if err := p.setLED(p.pins.ActiveLED, &p.active, gpio.Level(p.status.AnyMotionActive())); err != nil {
		return err
	}
	if err := p.setLED(p.pins.DeniedLED, &p.denied, gpio.Level(p.status.AnyMotionDenied())); err != nil {
		return err
	}

	level, err := p.gpio.ReadPin(p.pins.Button)
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}
	pressed := level == gpio.Low
	if pressed && !p.pressed {
		debug.Info("motion button pressed")
		// Browser viewers answer the prompt asynchronously.
		go p.status.EnableMotionAll(ctx)
	}
	p.pressed = pressed
	return nil
}

func (p *Panel) setLED(pin int, current *gpio.Level, want gpio.Level) error {
	if *current == want {
		return nil
	}
	if err := p.gpio.WritePin(pin, want); err != nil {
		return fmt.Errorf("write LED pin %d: %w", pin, err)
	}
	*current = want
	return nil
}

func (p *Panel) off() {
	_ = p.gpio.WritePin(p.pins.ActiveLED, gpio.Low)
	_ = p.gpio.WritePin(p.pins.DeniedLED, gpio.Low)
}
