package waveform

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Channel holds the random draws that shape one detector's trace.
type Channel struct {
	ID          int     `json:"id"`
	BaselineI   int     `json:"baseline_i"`
	BaselineQ   int     `json:"baseline_q"`
	GlitchAngle float64 `json:"glitch_angle"`
	StepTime    int     `json:"step_time"`
	StepI       int     `json:"step_i"`
	StepQ       int     `json:"step_q"`
	PulseOnsets []int   `json:"pulse_onsets"`
}

// DrawChannel consumes the parameter draws from rng in a fixed order. Noise
// draws follow on the same stream.
func DrawChannel(id int, p Params, rng *rand.Rand) Channel {
	ch := Channel{ID: id}
	ch.BaselineI = p.BaselineMin + rng.IntN(p.BaselineMax-p.BaselineMin)
	ch.BaselineQ = p.BaselineMin + rng.IntN(p.BaselineMax-p.BaselineMin)
	ch.GlitchAngle = rng.Float64() * 2 * math.Pi
	ch.StepTime = p.StepTimeMin + rng.IntN(p.StepTimeMax-p.StepTimeMin)

	sign := 1
	if rng.IntN(2) == 0 {
		sign = -1
	}
	gi := rng.NormFloat64()*p.StepStdDev + p.StepMean
	gq := rng.NormFloat64()*p.StepStdDev + p.StepMean
	ch.StepI = sign * int(math.Round(math.Abs(gi)))
	ch.StepQ = sign * int(math.Round(math.Abs(gq)))

	ch.PulseOnsets = drawOnsets(p, rng)
	return ch
}

func drawOnsets(p Params, rng *rand.Rand) []int {
	lo, hi := p.PulseMargin, p.Samples-p.PulseMargin
	if hi <= lo {
		return nil
	}
	// numpy rounds half to even; keep the same pulse counts.
	n := int(math.RoundToEven(float64(p.Samples) / float64(p.PulseSpacing)))
	onsets := make([]int, n)
	for i := range onsets {
		onsets[i] = lo + rng.IntN(hi-lo)
	}
	slices.Sort(onsets)
	return onsets
}

// pulse is the summed interference magnitude at t. Overlapping pulses add.
func (ch *Channel) pulse(t int, p Params) float64 {
	sum := 0.0
	for _, loc := range ch.PulseOnsets {
		if loc > t {
			break
		}
		if t < loc+p.PulseWindow {
			sum += p.PulseAmplitude * math.Exp(-float64(t-loc)/p.PulseDecay)
		}
	}
	return sum
}

// Value computes the saturated sample at t from the channel draws and the two
// noise terms. It has no state, so samples may be computed in any order.
func (ch *Channel) Value(t int, p Params, noiseI, noiseQ float64) (int, int) {
	vi := float64(ch.BaselineI) + noiseI
	vq := float64(ch.BaselineQ) + noiseQ
	if t >= ch.StepTime {
		vi += float64(ch.StepI)
		vq += float64(ch.StepQ)
	}
	if amp := ch.pulse(t, p); amp != 0 {
		vi += amp * math.Cos(ch.GlitchAngle)
		vq += amp * math.Sin(ch.GlitchAngle)
	}
	return saturate(vi), saturate(vq)
}

// saturate clamps to the full-scale range and truncates toward zero.
func saturate(v float64) int {
	if v > FullScale {
		return FullScale
	}
	if v < -FullScale {
		return -FullScale
	}
	return int(v)
}
