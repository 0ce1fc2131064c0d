package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a harness run. Nothing in pkg/ hard-codes these
// values; the CLI fills them from Default(), an optional YAML file and flags.
type Config struct {
	Channels      int     `yaml:"channels" json:"channels"`
	Samples       int     `yaml:"samples" json:"samples"`
	ScaleFactor   float64 `yaml:"scale_factor" json:"scale_factor"`
	WatchdogLimit int     `yaml:"watchdog_limit" json:"watchdog_limit"`
	NoiseSigma    float64 `yaml:"noise_sigma" json:"noise_sigma"`

	Pulse    Pulse    `yaml:"pulse" json:"pulse"`
	Baseline Baseline `yaml:"baseline" json:"baseline"`
	Step     Step     `yaml:"step" json:"step"`

	// Seed is nil when the caller did not supply one.
	Seed        *uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	RequireSeed bool    `yaml:"require_seed" json:"require_seed"`

	Workers  int    `yaml:"workers" json:"workers"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

type Pulse struct {
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Decay     float64 `yaml:"decay" json:"decay"`
	Window    int     `yaml:"window" json:"window"`
	Spacing   int     `yaml:"spacing" json:"spacing"`
	Margin    int     `yaml:"margin" json:"margin"`
}

// Baseline is the half-open DC range [Min, Max).
type Baseline struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

type Step struct {
	Mean    float64 `yaml:"mean" json:"mean"`
	StdDev  float64 `yaml:"stddev" json:"stddev"`
	TimeMin int     `yaml:"time_min" json:"time_min"`
	TimeMax int     `yaml:"time_max" json:"time_max"`
}

// Default returns the parameters used by the bench scripts: 2000 detectors,
// 3000 samples, Ntriglim 256.
func Default() Config {
	return Config{
		Channels:      2000,
		Samples:       3000,
		ScaleFactor:   512.0,
		WatchdogLimit: 256,
		NoiseSigma:    5.0,
		Pulse: Pulse{
			Amplitude: 300.0,
			Decay:     10.0,
			Window:    50,
			Spacing:   300,
			Margin:    50,
		},
		Baseline: Baseline{Min: -1000, Max: 1000},
		Step: Step{
			Mean:    200.0,
			StdDev:  20.0,
			TimeMin: 200,
			TimeMax: 800,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of Default(). Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the whole configuration eagerly and returns the first problem.
func (c Config) Validate() error {
	if err := PositiveInt("channels", c.Channels); err != nil {
		return err
	}
	if err := PositiveInt("samples", c.Samples); err != nil {
		return err
	}
	if err := PositiveInt("watchdog_limit", c.WatchdogLimit); err != nil {
		return err
	}
	if c.ScaleFactor < 0 {
		return invalid("scale_factor", "must be >= 0, got %g", c.ScaleFactor)
	}
	if c.NoiseSigma < 0 {
		return invalid("noise_sigma", "must be >= 0, got %g", c.NoiseSigma)
	}
	if c.Pulse.Decay <= 0 {
		return invalid("pulse.decay", "must be > 0, got %g", c.Pulse.Decay)
	}
	if c.Pulse.Window < 0 || c.Pulse.Margin < 0 {
		return invalid("pulse", "window and margin must be >= 0")
	}
	if err := PositiveInt("pulse.spacing", c.Pulse.Spacing); err != nil {
		return err
	}
	if c.Baseline.Max <= c.Baseline.Min {
		return invalid("baseline", "empty range [%d, %d)", c.Baseline.Min, c.Baseline.Max)
	}
	if c.Step.StdDev < 0 {
		return invalid("step.stddev", "must be >= 0, got %g", c.Step.StdDev)
	}
	if c.Step.TimeMax <= c.Step.TimeMin {
		return invalid("step", "empty time window [%d, %d)", c.Step.TimeMin, c.Step.TimeMax)
	}
	if c.Workers < 0 {
		return invalid("workers", "must be >= 0, got %d", c.Workers)
	}
	if c.RequireSeed && c.Seed == nil {
		return invalid("seed", "required for a reproducible run")
	}
	return nil
}
