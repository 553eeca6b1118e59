package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Motion source names accepted in motion.source.
const (
	MotionBrowser = "browser" // the viewer's own device orientation, relayed over its websocket
	MotionMQTT    = "mqtt"    // a shared IMU feed on the MQTT broker
	MotionMock    = "mock"    // synthetic orientation for development
)

// ViewerConfig holds the per-viewer limits and drag sensitivities.
type ViewerConfig struct {
	MaxPitchRatio    float64 `yaml:"max_pitch_ratio"`   // pitch limit as a fraction of π (default: 0.45)
	YawSensitivity   float64 `yaml:"yaw_sensitivity"`   // radians per pixel of horizontal drag
	PitchSensitivity float64 `yaml:"pitch_sensitivity"` // radians per pixel of vertical drag
}

// MotionConfig selects where device orientation comes from.
type MotionConfig struct {
	Source         string `yaml:"source"`           // browser, mqtt or mock
	MockIntervalMs int    `yaml:"mock_interval_ms"` // sample period of the mock source
}

// MQTTConfig describes the sensor bus.
type MQTTConfig struct {
	Broker           string `yaml:"broker"`            // e.g., "tcp://localhost:1883"
	ClientID         string `yaml:"client_id"`
	OrientationTopic string `yaml:"orientation_topic"` // device orientation samples (input)
	FusedTopic       string `yaml:"fused_topic"`       // fused viewer orientation (output)
	PublishFused     bool   `yaml:"publish_fused"`
}

// IndicatorConfig is the optional GPIO status panel.
type IndicatorConfig struct {
	Enabled        bool `yaml:"enabled"`
	ActiveLEDPin   int  `yaml:"active_led_pin"` // lit while motion is active (BCM)
	DeniedLEDPin   int  `yaml:"denied_led_pin"` // lit while motion is denied (BCM)
	ButtonPin      int  `yaml:"button_pin"`     // push button to GND, requests motion (BCM)
	PollIntervalMs int  `yaml:"poll_interval_ms"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool   `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	LogFormat  string `yaml:"log_format"`  // console or json
}

// Config aggregates all application configuration.
type Config struct {
	Viewer    ViewerConfig    `yaml:"viewer"`
	Motion    MotionConfig    `yaml:"motion"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a
// configs/ directory, without parent-directory components.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain \"..\"", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Viewer.MaxPitchRatio == 0 {
		c.Viewer.MaxPitchRatio = 0.45
	}
	if c.Viewer.YawSensitivity == 0 {
		c.Viewer.YawSensitivity = 0.005
	}
	if c.Viewer.PitchSensitivity == 0 {
		c.Viewer.PitchSensitivity = 0.0035
	}
	if c.Motion.Source == "" {
		c.Motion.Source = MotionBrowser
	}
	if c.Motion.MockIntervalMs <= 0 {
		c.Motion.MockIntervalMs = 50 // 20 Hz, close to a phone's orientation event rate
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "panview"
	}
	if c.MQTT.OrientationTopic == "" {
		c.MQTT.OrientationTopic = "panview/device/orientation"
	}
	if c.MQTT.FusedTopic == "" {
		c.MQTT.FusedTopic = "panview/view/orientation"
	}
	if c.Indicator.PollIntervalMs <= 0 {
		c.Indicator.PollIntervalMs = 50
	}
	if c.Defaults.LogFormat == "" {
		c.Defaults.LogFormat = "console"
	}
}

// Validate checks value ranges and cross-section requirements.
func (c *Config) Validate() error {
	if invalid(c.Viewer.MaxPitchRatio) || c.Viewer.MaxPitchRatio <= 0 || c.Viewer.MaxPitchRatio > 0.5 {
		return fmt.Errorf("viewer.max_pitch_ratio must be in (0, 0.5], got %g", c.Viewer.MaxPitchRatio)
	}
	if invalid(c.Viewer.YawSensitivity) || c.Viewer.YawSensitivity <= 0 {
		return fmt.Errorf("viewer.yaw_sensitivity must be > 0, got %g", c.Viewer.YawSensitivity)
	}
	if invalid(c.Viewer.PitchSensitivity) || c.Viewer.PitchSensitivity <= 0 {
		return fmt.Errorf("viewer.pitch_sensitivity must be > 0, got %g", c.Viewer.PitchSensitivity)
	}

	switch c.Motion.Source {
	case MotionBrowser, MotionMock:
	case MotionMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when motion.source is %q", MotionMQTT)
		}
	default:
		return fmt.Errorf("motion.source must be one of browser, mqtt, mock; got %q", c.Motion.Source)
	}
	if c.MQTT.PublishFused && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.publish_fused is set")
	}

	if c.Indicator.Enabled {
		pins := map[string]int{
			"active_led_pin": c.Indicator.ActiveLEDPin,
			"denied_led_pin": c.Indicator.DeniedLEDPin,
			"button_pin":     c.Indicator.ButtonPin,
		}
		seen := make(map[int]string)
		for _, name := range []string{"active_led_pin", "denied_led_pin", "button_pin"} {
			pin := pins[name]
			if pin <= 0 {
				return fmt.Errorf("indicator.%s must be > 0 when the indicator is enabled", name)
			}
			if other, dup := seen[pin]; dup {
				return fmt.Errorf("indicator.%s and indicator.%s share pin %d", other, name, pin)
			}
			seen[pin] = name
		}
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Defaults.LogFormat != "console" && c.Defaults.LogFormat != "json" {
		return fmt.Errorf("defaults.log_format must be console or json, got %q", c.Defaults.LogFormat)
	}
	return nil
}

func invalid(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// MaxPitch returns the pitch limit in radians.
func (c *Config) MaxPitch() float64 {
	return c.Viewer.MaxPitchRatio * math.Pi
}

// MockInterval returns the sample period of the mock motion source.
func (c *Config) MockInterval() time.Duration {
	return time.Duration(c.Motion.MockIntervalMs) * time.Millisecond
}

// PollInterval returns the indicator button polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Indicator.PollIntervalMs) * time.Millisecond
}

// NeedsMQTT reports whether a broker connection is required.
func (c *Config) NeedsMQTT() bool {
	return c.Motion.Source == MotionMQTT || c.MQTT.PublishFused
}
