// Package waveform synthesizes per-detector I/Q traces: a DC baseline, one
// flux-jump step, exponentially decaying pulses projected along the channel's
// glitch angle, and Gaussian noise, saturated to the 16-bit range.
package waveform

import (
	"context"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tdm/pkg/record"
)

// Sample is one generated (channel, t) point.
type Sample struct {
	Channel int
	T       int
	I       int
	Q       int
}

// Trace is a channel's draws plus its full I/Q sequence.
type Trace struct {
	Channel Channel
	I       []int
	Q       []int
}

// Dataset is the channel-major result of Generate.
type Dataset struct {
	Params Params
	Traces []Trace
}

type noiseDraw struct {
	rng   *rand.Rand
	sigma float64
}

func (n noiseDraw) next() (float64, float64) {
	return n.rng.NormFloat64() * n.sigma, n.rng.NormFloat64() * n.sigma
}

// GenerateChannel produces one channel from its own substream. The result only
// depends on (p, id).
func GenerateChannel(id int, p Params) Trace {
	rng := p.source(id)
	ch := DrawChannel(id, p, rng)
	noise := noiseDraw{rng: rng, sigma: p.NoiseSigma}

	tr := Trace{Channel: ch, I: make([]int, p.Samples), Q: make([]int, p.Samples)}
	for t := 0; t < p.Samples; t++ {
		ni, nq := noise.next()
		tr.I[t], tr.Q[t] = ch.Value(t, p, ni, nq)
	}
	return tr
}

// Generate builds every channel in parallel. Output is identical for any
// worker count.
func Generate(ctx context.Context, p Params) (*Dataset, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ds := &Dataset{Params: p, Traces: make([]Trace, p.Channels)}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := 0; id < p.Channels; id++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds.Traces[id] = GenerateChannel(id, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Channels returns the per-channel draws in channel order.
func (d *Dataset) Channels() []Channel {
	out := make([]Channel, len(d.Traces))
	for i, tr := range d.Traces {
		out[i] = tr.Channel
	}
	return out
}

// Matrix converts the dataset to the codec's channel-major 2-field form.
func (d *Dataset) Matrix() record.Matrix {
	m := make(record.Matrix, len(d.Traces))
	for ch, tr := range d.Traces {
		row := make([]record.Record, len(tr.I))
		for t := range row {
			row[t] = record.Record{tr.I[t], tr.Q[t]}
		}
		m[ch] = row
	}
	return m
}
