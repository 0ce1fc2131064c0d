// Package record converts between channel x time tuple matrices and the flat,
// time-major integer streams exchanged with the device under test.
//
// Stream layout for N channels, T samples, F fields:
//
//	t=0: ch0 f0..fF-1, ch1 f0..fF-1, ... chN-1
//	t=1: ch0 ...
package record

import (
	"github.com/tdm/pkg/config"
)

// Field arities of the three streams.
const (
	InputFields       = 2 // I, Q
	CalibrationFields = 6 // mean_i, mean_q, proj_i, proj_q, hi, lo
	OutputFields      = 3 // I, Q, trigger

	// TriggerIndex is the flag position inside an output record.
	TriggerIndex = 2
)

// Record is one fixed-arity tuple.
type Record []int

// Matrix is channel-major: m[ch][t].
type Matrix [][]Record

// Frames is time-major: f[t][ch]. Frames returned by Decode alias the flat
// input slice.
type Frames [][]Record

// Shape returns channel count, sample count and field arity. Fields is 0 for an
// empty matrix.
func (m Matrix) Shape() (channels, samples, fields int) {
	channels = len(m)
	if channels == 0 {
		return 0, 0, 0
	}
	samples = len(m[0])
	if samples > 0 {
		fields = len(m[0][0])
	}
	return channels, samples, fields
}

func (m Matrix) check() (channels, samples, fields int, err error) {
	channels, samples, fields = m.Shape()
	for ch := range m {
		if len(m[ch]) != samples {
			return 0, 0, 0, formatErr("channel %d has %d samples, channel 0 has %d", ch, len(m[ch]), samples)
		}
		for t, r := range m[ch] {
			if len(r) != fields {
				return 0, 0, 0, formatErr("channel %d sample %d has %d fields, want %d", ch, t, len(r), fields)
			}
		}
	}
	return channels, samples, fields, nil
}

// Encode flattens m in time-major order. A ragged matrix is a FormatError.
func Encode(m Matrix) ([]int, error) {
	channels, samples, fields, err := m.check()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, channels*samples*fields)
	for t := 0; t < samples; t++ {
		for ch := 0; ch < channels; ch++ {
			out = append(out, m[ch][t]...)
		}
	}
	return out, nil
}

// Decode regroups a flat stream into T frames of N records of F fields.
func Decode(flat []int, channels, fields int) (Frames, error) {
	if err := config.PositiveInt("channels", channels); err != nil {
		return nil, err
	}
	if err := config.PositiveInt("fields", fields); err != nil {
		return nil, err
	}
	stride := channels * fields
	if len(flat)%stride != 0 {
		return nil, formatErr("stream of %d values does not divide into %d channels x %d fields", len(flat), channels, fields)
	}
	samples := len(flat) / stride
	frames := make(Frames, samples)
	for t := range frames {
		frame := make([]Record, channels)
		base := t * stride
		for ch := range frame {
			off := base + ch*fields
			frame[ch] = Record(flat[off : off+fields : off+fields])
		}
		frames[t] = frame
	}
	return frames, nil
}

// Transpose groups frames by channel. Records are shared, not copied.
func (f Frames) Transpose() Matrix {
	if len(f) == 0 {
		return Matrix{}
	}
	channels := len(f[0])
	m := make(Matrix, channels)
	for ch := range m {
		row := make([]Record, len(f))
		for t := range f {
			row[t] = f[t][ch]
		}
		m[ch] = row
	}
	return m
}

// Transpose groups a channel-major matrix by time. Records are shared.
func (m Matrix) Transpose() Frames {
	channels, samples, _ := m.Shape()
	f := make(Frames, samples)
	for t := range f {
		frame := make([]Record, channels)
		for ch := range frame {
			frame[ch] = m[ch][t]
		}
		f[t] = frame
	}
	return f
}

// Concat joins records field by field. It is the whole encoding for the
// channel-major calibration stream.
func Concat(records []Record) []int {
	n := 0
	for _, r := range records {
		n += len(r)
	}
	out := make([]int, 0, n)
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// Split is the inverse of Concat for a fixed arity.
func Split(flat []int, fields int) ([]Record, error) {
	if err := config.PositiveInt("fields", fields); err != nil {
		return nil, err
	}
	if len(flat)%fields != 0 {
		return nil, formatErr("stream of %d values does not divide into records of %d fields", len(flat), fields)
	}
	out := make([]Record, len(flat)/fields)
	for i := range out {
		off := i * fields
		out[i] = Record(flat[off : off+fields : off+fields])
	}
	return out, nil
}
