// Package calib derives the per-channel projection and hysteresis thresholds
// loaded into the trigger block, and encodes them as the calibration stream.
package calib

import (
	"math"

	"github.com/tdm/pkg/waveform"
)

// Threshold multiples of the metric sigma.
const (
	EntrySigmas = 5.0
	ExitSigmas  = 0.5
)

// MetricSigma is the per-unit-projection noise the thresholds are derived
// from. It is fixed; the generator's noise setting does not move thresholds.
const MetricSigma = 5.0

// Options configures Derive.
type Options struct {
	ScaleFactor float64
}

func DefaultOptions() Options {
	return Options{ScaleFactor: 512.0}
}

// Record is one channel's calibration. Hi gates entry into a glitch episode and
// is at least as far from zero as Lo, which gates exit.
type Record struct {
	Channel int `json:"channel"`
	MeanI   int `json:"mean_i"`
	MeanQ   int `json:"mean_q"`
	ProjI   int `json:"proj_i"`
	ProjQ   int `json:"proj_q"`
	Hi      int `json:"hi_threshold"`
	Lo      int `json:"lo_threshold"`
}

// Derive computes the calibration from the pre-step baseline and the glitch
// direction. The projection points against the glitch so a pulse drives the
// metric negative. ScaleFactor 0 yields zero thresholds, which is accepted.
func Derive(channel, baselineI, baselineQ int, glitchAngle float64, opts Options) Record {
	pi := int(math.Round(-opts.ScaleFactor * math.Cos(glitchAngle)))
	pq := int(math.Round(-opts.ScaleFactor * math.Sin(glitchAngle)))
	effective := math.Hypot(float64(pi), float64(pq))
	sigmaMetric := effective * MetricSigma
	return Record{
		Channel: channel,
		MeanI:   baselineI,
		MeanQ:   baselineQ,
		ProjI:   pi,
		ProjQ:   pq,
		Hi:      int(math.Round(-EntrySigmas * sigmaMetric)),
		Lo:      int(math.Round(-ExitSigmas * sigmaMetric)),
	}
}

// FromChannel derives from a generator draw. Only baseline and angle are used,
// never post-step samples.
func FromChannel(ch waveform.Channel, opts Options) Record {
	return Derive(ch.ID, ch.BaselineI, ch.BaselineQ, ch.GlitchAngle, opts)
}

// FromChannels derives one record per channel, in channel order.
func FromChannels(chs []waveform.Channel, opts Options) []Record {
	out := make([]Record, len(chs))
	for i, ch := range chs {
		out[i] = FromChannel(ch, opts)
	}
	return out
}

// Project maps an I/Q sample to the scalar glitch metric.
func (r Record) Project(i, q int) int64 {
	return int64(r.ProjI)*int64(i-r.MeanI) + int64(r.ProjQ)*int64(q-r.MeanQ)
}
