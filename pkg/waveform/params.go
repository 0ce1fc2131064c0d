package waveform

import (
	"math/rand/v2"

	"github.com/tdm/pkg/config"
)

// Saturation bound of the signed 16-bit sample domain. -32768 is never produced.
const FullScale = 32767

// Params fully determines a synthetic dataset.
type Params struct {
	Channels int
	Samples  int
	Seed     uint64

	NoiseSigma float64

	PulseAmplitude float64
	PulseDecay     float64
	PulseWindow    int // samples a pulse stays active after its onset
	PulseSpacing   int // one pulse per PulseSpacing samples on average
	PulseMargin    int // onsets are kept this far from either end

	BaselineMin int
	BaselineMax int

	StepMean    float64
	StepStdDev  float64
	StepTimeMin int
	StepTimeMax int

	// Workers bounds parallel channel generation; 0 means one per CPU.
	Workers int
}

// FromConfig copies the generator section of cfg. The seed is passed
// separately because cfg.Seed may be unset.
func FromConfig(cfg config.Config, seed uint64) Params {
	return Params{
		Channels:       cfg.Channels,
		Samples:        cfg.Samples,
		Seed:           seed,
		NoiseSigma:     cfg.NoiseSigma,
		PulseAmplitude: cfg.Pulse.Amplitude,
		PulseDecay:     cfg.Pulse.Decay,
		PulseWindow:    cfg.Pulse.Window,
		PulseSpacing:   cfg.Pulse.Spacing,
		PulseMargin:    cfg.Pulse.Margin,
		BaselineMin:    cfg.Baseline.Min,
		BaselineMax:    cfg.Baseline.Max,
		StepMean:       cfg.Step.Mean,
		StepStdDev:     cfg.Step.StdDev,
		StepTimeMin:    cfg.Step.TimeMin,
		StepTimeMax:    cfg.Step.TimeMax,
		Workers:        cfg.Workers,
	}
}

// DefaultParams is FromConfig(config.Default()) resized to channels x samples.
func DefaultParams(channels, samples int, seed uint64) Params {
	cfg := config.Default()
	cfg.Channels = channels
	cfg.Samples = samples
	return FromConfig(cfg, seed)
}

func (p Params) validate() error {
	cfg := config.Default()
	cfg.Channels = p.Channels
	cfg.Samples = p.Samples
	cfg.NoiseSigma = p.NoiseSigma
	cfg.Pulse = config.Pulse{
		Amplitude: p.PulseAmplitude,
		Decay:     p.PulseDecay,
		Window:    p.PulseWindow,
		Spacing:   p.PulseSpacing,
		Margin:    p.PulseMargin,
	}
	cfg.Baseline = config.Baseline{Min: p.BaselineMin, Max: p.BaselineMax}
	cfg.Step = config.Step{Mean: p.StepMean, StdDev: p.StepStdDev, TimeMin: p.StepTimeMin, TimeMax: p.StepTimeMax}
	cfg.Workers = p.Workers
	return cfg.Validate()
}

// source returns the channel's private random stream. Streams for different
// channels never share state, so generation order does not affect output.
func (p Params) source(channel int) *rand.Rand {
	return rand.New(rand.NewPCG(p.Seed, uint64(channel)))
}
