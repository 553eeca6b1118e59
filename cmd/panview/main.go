package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/PanView/internal/config"
	"github.com/cjeanneret/PanView/internal/debug"
	"github.com/cjeanneret/PanView/internal/hw/gpio"
	"github.com/cjeanneret/PanView/internal/hw/indicator"
	"github.com/cjeanneret/PanView/internal/hw/sensor"
	"github.com/cjeanneret/PanView/internal/logic/control"
	"github.com/cjeanneret/PanView/internal/logic/motion"
	"github.com/cjeanneret/PanView/internal/logic/orientation"
	"github.com/cjeanneret/PanView/internal/logic/pointer"
	"github.com/cjeanneret/PanView/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	motionSource := flag.String("motion", "", "override motion source (browser, mqtt, mock)")
	maxPitchRatio := flag.Float64("max_pitch_ratio", 0, "override pitch limit as a fraction of π (0-0.5]")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Only non-empty / non-zero overrides are applied.
	overrides := cliOverrides{MotionSource: *motionSource, MaxPitchRatio: *maxPitchRatio}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.SetFormat(cfg.Defaults.LogFormat)
	defer debug.Sync()
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Motion source", cfg.Motion.Source)
	debug.PrintStruct("Viewer config", cfg.Viewer)

	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	} else if cfg.Motion.Source == config.MotionBrowser {
		log.Fatalf("motion source %q needs the web server (-web)", config.MotionBrowser)
	}

	var client mqtt.Client
	if cfg.NeedsMQTT() {
		debug.Step(1, "Connecting to MQTT broker")
		client, err = sensor.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			log.Fatalf("MQTT: %v", err)
		}
		defer client.Disconnect(250)
	}

	debug.Step(2, "Creating motion platform")
	platform, closePlatform, err := newPlatform(cfg, client)
	if err != nil {
		log.Fatalf("motion platform: %v", err)
	}
	defer closePlatform()

	var publisher web.FusedPublisher
	if cfg.MQTT.PublishFused {
		publisher = sensor.NewPublisher(client, cfg.MQTT.FusedTopic)
		debug.Value("Fused topic", cfg.MQTT.FusedTopic)
	}

	g, gctx := errgroup.WithContext(ctx)
	var status indicator.Status

	if port := webPort.port(); port > 0 {
		debug.Step(3, "Starting web server")
		sessions := web.NewRegistry()
		viewer := web.ViewerConfig{
			MaxPitch:         cfg.MaxPitch(),
			YawSensitivity:   cfg.Viewer.YawSensitivity,
			PitchSensitivity: cfg.Viewer.PitchSensitivity,
			MotionSource:     cfg.Motion.Source,
		}
		srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, sessions, viewer, web.SessionOptions{
			Control:   controlConfig(cfg),
			Platform:  platform,
			Publisher: publisher,
		})
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		g.Go(func() error { return srv.Run(gctx) })
		status = sessions
	} else {
		debug.Step(3, "Running headless viewer")
		h := newHeadless(controlConfig(cfg), platform, publisher)
		defer h.coord.Dispose()
		status = h
	}

	if cfg.Indicator.Enabled {
		debug.Step(4, "Initializing indicator panel")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		panel, err := indicator.NewPanel(gpioDriver, indicator.Pins{
			ActiveLED: cfg.Indicator.ActiveLEDPin,
			DeniedLED: cfg.Indicator.DeniedLEDPin,
			Button:    cfg.Indicator.ButtonPin,
		}, status, cfg.PollInterval())
		if err != nil {
			log.Fatalf("init indicator failed: %v", err)
		}
		debug.PrintStruct("Indicator config", cfg.Indicator)
		g.Go(func() error { return panel.Run(gctx) })
	}

	// Headless mode without a panel only needs to wait for a signal.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("panview: %v", err)
	}
	debug.Info("shutdown complete")
}

// newPlatform builds the shared motion platform for cfg.Motion.Source.
// The browser source returns a nil platform: each viewer page brings its own.
func newPlatform(cfg *config.Config, broker sensor.Broker) (motion.Platform, func(), error) {
	switch cfg.Motion.Source {
	case config.MotionBrowser:
		return nil, func() {}, nil
	case config.MotionMock:
		return sensor.NewMock(cfg.MockInterval()), func() {}, nil
	case config.MotionMQTT:
		if broker == nil {
			return nil, nil, fmt.Errorf("motion source %q has no broker connection", config.MotionMQTT)
		}
		feed, err := sensor.NewFeed(broker, cfg.MQTT.OrientationTopic)
		if err != nil {
			return nil, nil, err
		}
		return feed, func() {
			if err := feed.Close(); err != nil {
				debug.Warn("closing orientation feed", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported motion source: %s", cfg.Motion.Source)
	}
}

func controlConfig(cfg *config.Config) control.Config {
	return control.Config{
		MaxPitch: cfg.MaxPitch(),
		Sensitivity: pointer.Sensitivity{
			Yaw:   cfg.Viewer.YawSensitivity,
			Pitch: cfg.Viewer.PitchSensitivity,
		},
	}
}

// headless is a single viewer without a page: it follows a shared platform
// and only logs or publishes its orientation.
type headless struct {
	coord *control.Coordinator
}

func newHeadless(cfg control.Config, platform motion.Platform, publisher web.FusedPublisher) *headless {
	return &headless{
		coord: control.New(cfg, platform, nil, func(o orientation.Orientation) {
			debug.Orientation("headless", o)
			if publisher != nil {
				if err := publisher.Publish("headless", o); err != nil {
					debug.Warn("publish fused orientation", err)
				}
			}
		}),
	}
}

func (h *headless) AnyMotionActive() bool { return h.coord.State().MotionActive }
func (h *headless) AnyMotionDenied() bool { return h.coord.State().MotionDenied }
func (h *headless) EnableMotionAll(ctx context.Context) {
	debug.Permission("headless", string(h.coord.EnableMotion(ctx)))
}

// cliOverrides are the configuration values settable from the command line.
type cliOverrides struct {
	MotionSource  string
	MaxPitchRatio float64
}

// validateCLIOverrides checks that set overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(o cliOverrides) error {
	switch o.MotionSource {
	case "", config.MotionBrowser, config.MotionMQTT, config.MotionMock:
	default:
		return fmt.Errorf("motion must be browser, mqtt or mock, got %q", o.MotionSource)
	}
	if r := o.MaxPitchRatio; r != 0 {
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 || r > 0.5 {
			return fmt.Errorf("max_pitch_ratio must be in (0, 0.5], got %g", r)
		}
	}
	return nil
}

// applyOverrides mutates cfg with the set overrides.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.MotionSource != "" {
		cfg.Motion.Source = o.MotionSource
	}
	if o.MaxPitchRatio > 0 {
		cfg.Viewer.MaxPitchRatio = o.MaxPitchRatio
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
