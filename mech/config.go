package mech

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the recognised tunables for the acquisition pipeline and
// emulator. These are exactly the keys the core accepts; no other keys
// are recognised.
type Config struct {
	// CounterFrequency is the synthesised counter frequency in Hz.
	CounterFrequency uint `yaml:"counter_frequency"`

	// IdleThreshold is how long, in reconstructed global time, the
	// acquisition pipeline will wait for a new state-change sample before
	// considering the capture complete.
	IdleThreshold time.Duration `yaml:"idle_threshold"`

	// DefaultCaptureTimeout is the wall-clock timeout CaptureTasks applies
	// to a task that doesn't specify its own. AwaitCaptureCompletion does
	// not use it; its caller always passes a timeout.
	DefaultCaptureTimeout time.Duration `yaml:"default_capture_timeout"`

	// BurnGainK is the calibration constant mapping burn-time (seconds) to
	// pixel darkness: pixel = max(0, 255 - ceil(burn * K)).
	BurnGainK float64 `yaml:"burn_gain_K"`

	// DeviceSelectionScore ranks candidate devices when more than one is
	// discovered; higher scores win. Not representable in YAML - set
	// programmatically only. Defaults to preferring the device with the
	// most lines, mirroring the reference analyser's
	// maximize_digital_in_buffer_size selection.
	DeviceSelectionScore func(DeviceInfo) int `yaml:"-"`
}

// yamlConfig mirrors Config's YAML-representable fields with plain
// seconds/float durations, since time.Duration doesn't round-trip through
// YAML as the "positive real seconds" spec.md requires.
type yamlConfig struct {
	CounterFrequency      *uint    `yaml:"counter_frequency"`
	IdleThreshold         *float64 `yaml:"idle_threshold"`
	DefaultCaptureTimeout *float64 `yaml:"default_capture_timeout"`
	BurnGainK             *float64 `yaml:"burn_gain_K"`
}

// DefaultConfig returns a Config populated with spec.md's defaults.
func DefaultConfig() Config {
	return Config{
		CounterFrequency:      10000,
		IdleThreshold:         time.Second,
		DefaultCaptureTimeout: 10 * time.Second,
		BurnGainK:             25000,
		DeviceSelectionScore:  scoreByLineCount,
	}
}

func scoreByLineCount(d DeviceInfo) int { return d.Lines }

// LoadConfig reads a YAML configuration file, overlaying any present keys
// onto DefaultConfig. DeviceSelectionScore is never touched by LoadConfig;
// set it programmatically after loading if a non-default ranking is
// needed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("mech: reading config %s: %w", path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return Config{}, fmt.Errorf("mech: parsing config %s: %w", path, err)
	}

	if y.CounterFrequency != nil {
		cfg.CounterFrequency = *y.CounterFrequency
	}
	if y.IdleThreshold != nil {
		cfg.IdleThreshold = secondsToDuration(*y.IdleThreshold)
	}
	if y.DefaultCaptureTimeout != nil {
		cfg.DefaultCaptureTimeout = secondsToDuration(*y.DefaultCaptureTimeout)
	}
	if y.BurnGainK != nil {
		cfg.BurnGainK = *y.BurnGainK
	}

	return cfg, cfg.Validate()
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Validate checks that every recognised key holds a sane, positive value.
func (c Config) Validate() error {
	if c.CounterFrequency == 0 {
		return fmt.Errorf("mech: counter_frequency must be positive")
	}
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("mech: idle_threshold must be positive")
	}
	if c.DefaultCaptureTimeout <= 0 {
		return fmt.Errorf("mech: default_capture_timeout must be positive")
	}
	if c.BurnGainK <= 0 {
		return fmt.Errorf("mech: burn_gain_K must be positive")
	}
	return nil
}
