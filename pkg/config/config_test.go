package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"channels":       func(c *Config) { c.Channels = 0 },
		"samples":        func(c *Config) { c.Samples = -1 },
		"watchdog_limit": func(c *Config) { c.WatchdogLimit = 0 },
		"baseline":       func(c *Config) { c.Baseline.Max = c.Baseline.Min },
		"step":           func(c *Config) { c.Step.TimeMax = 100 },
		"pulse.decay":    func(c *Config) { c.Pulse.Decay = 0 },
		"seed":           func(c *Config) { c.RequireSeed = true },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, field, ce.Field)
		})
	}
}

func TestZeroScaleFactorAccepted(t *testing.T) {
	cfg := Default()
	cfg.ScaleFactor = 0
	assert.NoError(t, cfg.Validate())
}

func TestSeedSatisfiesRequireSeed(t *testing.T) {
	cfg := Default()
	seed := uint64(7)
	cfg.Seed = &seed
	cfg.RequireSeed = true
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tdm.yaml")
	body := "channels: 16\nsamples: 1200\nseed: 42\npulse:\n  amplitude: 150\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Channels)
	assert.Equal(t, 1200, cfg.Samples)
	assert.Equal(t, 150.0, cfg.Pulse.Amplitude)
	assert.Equal(t, 10.0, cfg.Pulse.Decay, "unset keys keep their defaults")
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(42), *cfg.Seed)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tdm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detectors: 5\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCheckChannelCounts(t *testing.T) {
	assert.NoError(t, CheckChannelCounts(4, 4))
	err := CheckChannelCounts(3, 4)
	assert.ErrorIs(t, err, ErrConfig)
}
