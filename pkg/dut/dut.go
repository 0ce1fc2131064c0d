// Package dut defines how the harness drives a device under test and ships a
// loopback reference device for self-checks. The loopback is not a model of
// the FPGA pipeline: it passes samples through and applies plain hysteresis on
// the projected metric, with no watchdog reset.
package dut

import (
	"fmt"

	"github.com/tdm/pkg/calib"
	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/record"
)

// Device turns 2-field input frames into 3-field output frames (I, Q, trigger).
type Device interface {
	Process(cal []calib.Record, in record.Frames) (record.Frames, error)
}

// Loopback is the reference hysteresis trigger. The zero value is ready to use.
type Loopback struct{}

var _ Device = Loopback{}

func (Loopback) Process(cal []calib.Record, in record.Frames) (record.Frames, error) {
	if len(in) == 0 {
		return record.Frames{}, nil
	}
	if err := config.CheckChannelCounts(len(cal), len(in[0])); err != nil {
		return nil, err
	}
	st := NewStream(cal)
	out := make(record.Frames, len(in))
	for t, frame := range in {
		o, err := st.Step(frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", t, err)
		}
		out[t] = o
	}
	return out, nil
}

// Stream runs the loopback one frame at a time, holding only one hysteresis
// bit per channel.
type Stream struct {
	cal    []calib.Record
	active []bool
}

func NewStream(cal []calib.Record) *Stream {
	return &Stream{cal: cal, active: make([]bool, len(cal))}
}

// Step consumes one input frame and returns the matching output frame.
func (s *Stream) Step(frame []record.Record) ([]record.Record, error) {
	if len(frame) != len(s.cal) {
		return nil, &record.FormatError{Reason: fmt.Sprintf("frame has %d channels, want %d", len(frame), len(s.cal))}
	}
	out := make([]record.Record, len(frame))
	for ch, r := range frame {
		if len(r) < record.InputFields {
			return nil, &record.FormatError{Reason: fmt.Sprintf("channel %d has %d fields", ch, len(r))}
		}
		i, q := r[0], r[1]
		out[ch] = record.Record{i, q, s.Sample(ch, i, q)}
	}
	return out, nil
}

// Sample advances channel ch by one sample and returns its trigger flag.
func (s *Stream) Sample(ch, i, q int) int {
	s.active[ch] = step(s.cal[ch], s.active[ch], i, q)
	if s.active[ch] {
		return 1
	}
	return 0
}

// step advances one channel's hysteresis state. Entry needs the metric at or
// below Hi; exit needs it at or above Lo.
func step(c calib.Record, active bool, i, q int) bool {
	m := c.Project(i, q)
	if active {
		return m < int64(c.Lo)
	}
	return m <= int64(c.Hi)
}
