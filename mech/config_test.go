package mech

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint(10000), cfg.CounterFrequency)
	assert.Equal(t, time.Second, cfg.IdleThreshold)
	assert.Equal(t, 10*time.Second, cfg.DefaultCaptureTimeout)
	assert.Equal(t, 25000.0, cfg.BurnGainK)
}

func TestLoadConfig_PartialOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("counter_frequency: 20000\nburn_gain_K: 30000\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(20000), cfg.CounterFrequency)
	assert.Equal(t, 30000.0, cfg.BurnGainK)
	// Untouched keys keep their defaults.
	assert.Equal(t, time.Second, cfg.IdleThreshold)
	assert.Equal(t, 10*time.Second, cfg.DefaultCaptureTimeout)
}

func TestLoadConfig_FractionalSeconds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("idle_threshold: 0.5\ndefault_capture_timeout: 2.5\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.IdleThreshold)
	assert.Equal(t, 2500*time.Millisecond, cfg.DefaultCaptureTimeout)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_RejectsInvalidValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("counter_frequency: 0\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"zero frequency", Config{CounterFrequency: 0, IdleThreshold: time.Second, DefaultCaptureTimeout: time.Second, BurnGainK: 1}, false},
		{"zero idle", Config{CounterFrequency: 1, IdleThreshold: 0, DefaultCaptureTimeout: time.Second, BurnGainK: 1}, false},
		{"negative timeout", Config{CounterFrequency: 1, IdleThreshold: time.Second, DefaultCaptureTimeout: -1, BurnGainK: 1}, false},
		{"zero gain", Config{CounterFrequency: 1, IdleThreshold: time.Second, DefaultCaptureTimeout: time.Second, BurnGainK: 0}, false},
		{"all positive", Config{CounterFrequency: 1, IdleThreshold: time.Second, DefaultCaptureTimeout: time.Second, BurnGainK: 1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestScoreByLineCount(t *testing.T) {
	assert.Equal(t, 16, scoreByLineCount(DeviceInfo{Lines: 16}))
}
