package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_Rejected(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"traversal", "../../etc/passwd"},
		{"traversal_inside_configs", "configs/../../secrets/panview.yaml"},
		{"json_extension", "configs/default.json"},
		{"yml_extension", "configs/default.yml"},
		{"no_extension", "configs/default"},
		{"other_dir", "other/default.yaml"},
		{"bare_file", "default.yaml"},
		{"absolute_tmp", "/tmp/default.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateConfigPath(tc.path); err == nil {
				t.Errorf("expected error for %q, got nil", tc.path)
			}
		})
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Must not panic; the result is OS-dependent.
	_ = ValidateConfigPath(long)
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
viewer:
  max_pitch_ratio: 0.4
  yaw_sensitivity: 0.006
  pitch_sensitivity: 0.004
motion:
  source: mqtt
  mock_interval_ms: 20
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "panview-test"
  orientation_topic: "inertial/device"
  fused_topic: "inertial/view"
  publish_fused: true
indicator:
  enabled: true
  active_led_pin: 17
  denied_led_pin: 27
  button_pin: 22
  poll_interval_ms: 25
defaults:
  debug_level: 2
  mock_gpio: true
  log_format: json
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Viewer.MaxPitchRatio != 0.4 {
		t.Errorf("viewer.max_pitch_ratio = %v, want 0.4", cfg.Viewer.MaxPitchRatio)
	}
	if cfg.Motion.Source != MotionMQTT {
		t.Errorf("motion.source = %q, want %q", cfg.Motion.Source, MotionMQTT)
	}
	if cfg.MQTT.OrientationTopic != "inertial/device" {
		t.Errorf("mqtt.orientation_topic = %q", cfg.MQTT.OrientationTopic)
	}
	if !cfg.MQTT.PublishFused {
		t.Error("mqtt.publish_fused should be true")
	}
	if cfg.Indicator.ButtonPin != 22 {
		t.Errorf("indicator.button_pin = %d, want 22", cfg.Indicator.ButtonPin)
	}
	if cfg.Defaults.LogFormat != "json" {
		t.Errorf("defaults.log_format = %q, want json", cfg.Defaults.LogFormat)
	}
	if got := cfg.MockInterval(); got != 20*time.Millisecond {
		t.Errorf("MockInterval() = %v, want 20ms", got)
	}
	if got := cfg.PollInterval(); got != 25*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 25ms", got)
	}
	if math.Abs(cfg.MaxPitch()-0.4*math.Pi) > 1e-12 {
		t.Errorf("MaxPitch() = %v, want 0.4π", cfg.MaxPitch())
	}
	if !cfg.NeedsMQTT() {
		t.Error("NeedsMQTT() should be true for the mqtt source")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Viewer.MaxPitchRatio != 0.45 {
		t.Errorf("max_pitch_ratio default = %v, want 0.45", cfg.Viewer.MaxPitchRatio)
	}
	if cfg.Viewer.YawSensitivity != 0.005 || cfg.Viewer.PitchSensitivity != 0.0035 {
		t.Errorf("sensitivity defaults = %v/%v", cfg.Viewer.YawSensitivity, cfg.Viewer.PitchSensitivity)
	}
	if cfg.Motion.Source != MotionBrowser {
		t.Errorf("motion.source default = %q, want browser", cfg.Motion.Source)
	}
	if cfg.Motion.MockIntervalMs != 50 {
		t.Errorf("mock_interval_ms default = %d, want 50", cfg.Motion.MockIntervalMs)
	}
	if cfg.MQTT.ClientID != "panview" || cfg.MQTT.FusedTopic != "panview/view/orientation" {
		t.Errorf("mqtt defaults = %+v", cfg.MQTT)
	}
	if cfg.Defaults.LogFormat != "console" {
		t.Errorf("log_format default = %q, want console", cfg.Defaults.LogFormat)
	}
	if cfg.NeedsMQTT() {
		t.Error("NeedsMQTT() should be false by default")
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"pitch_ratio_too_large", "viewer:\n  max_pitch_ratio: 0.6\n"},
		{"pitch_ratio_negative", "viewer:\n  max_pitch_ratio: -0.1\n"},
		{"negative_sensitivity", "viewer:\n  yaw_sensitivity: -1\n"},
		{"unknown_source", "motion:\n  source: gyro\n"},
		{"mqtt_without_broker", "motion:\n  source: mqtt\n"},
		{"publish_without_broker", "mqtt:\n  publish_fused: true\n"},
		{"indicator_missing_pin", "indicator:\n  enabled: true\n  active_led_pin: 17\n  denied_led_pin: 27\n"},
		{"indicator_shared_pin", "indicator:\n  enabled: true\n  active_led_pin: 17\n  denied_led_pin: 17\n  button_pin: 22\n"},
		{"debug_level_high", "defaults:\n  debug_level: 5\n"},
		{"log_format", "defaults:\n  log_format: xml\n"},
		{"malformed_yaml", "viewer: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "configs", "absent.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_IndicatorDisabledIgnoresPins(t *testing.T) {
	if _, err := Load(writeConfig(t, "indicator:\n  enabled: false\n  active_led_pin: 0\n")); err != nil {
		t.Errorf("disabled indicator should not require pins: %v", err)
	}
}

func TestValidate_NaN(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Viewer.MaxPitchRatio = math.NaN()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for NaN max_pitch_ratio")
	}
}

func TestValidate_ZeroSensitivityRejected(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Viewer.PitchSensitivity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero pitch_sensitivity")
	}
}

func TestLoad_RepositoryDefault(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("configs/default.yaml should load: %v", err)
	}
	if cfg.Motion.Source != MotionBrowser {
		t.Errorf("default motion.source = %q, want browser", cfg.Motion.Source)
	}
}
