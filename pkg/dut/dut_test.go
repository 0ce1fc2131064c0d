package dut

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/calib"
	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/events"
	"github.com/tdm/pkg/record"
	"github.com/tdm/pkg/waveform"
)

func TestLoopbackHysteresis(t *testing.T) {
	cal := []calib.Record{calib.Derive(0, 0, 0, 0, calib.DefaultOptions())}
	is := []int{0, 0, 300, 200, 100, 10, 1, 0}
	m := record.Matrix{make([]record.Record, len(is))}
	for idx, v := range is {
		m[0][idx] = record.Record{v, 0}
	}

	out, err := Loopback{}.Process(cal, m.Transpose())
	require.NoError(t, err)
	got := out.Transpose()
	flags := make([]int, len(is))
	for idx, r := range got[0] {
		assert.Equal(t, is[idx], r[0], "samples pass through")
		flags[idx] = r[2]
	}
	assert.Equal(t, []int{0, 0, 1, 1, 1, 1, 0, 0}, flags)
}

func TestLoopbackChannelMismatch(t *testing.T) {
	cal := []calib.Record{calib.Derive(0, 0, 0, 0, calib.DefaultOptions())}
	in := record.Frames{{{1, 2}, {3, 4}}}
	_, err := Loopback{}.Process(cal, in)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestLoopbackEndToEnd(t *testing.T) {
	p := waveform.DefaultParams(16, 1200, 2024)
	ds, err := waveform.Generate(context.Background(), p)
	require.NoError(t, err)
	cal := calib.FromChannels(ds.Channels(), calib.DefaultOptions())

	flat, err := record.Encode(ds.Matrix())
	require.NoError(t, err)
	in, err := record.Decode(flat, p.Channels, record.InputFields)
	require.NoError(t, err)

	out, err := Loopback{}.Process(cal, in)
	require.NoError(t, err)
	outFlat, err := record.Encode(out.Transpose())
	require.NoError(t, err)
	require.Len(t, outFlat, p.Channels*p.Samples*record.OutputFields)

	decoded, err := record.Decode(outFlat, p.Channels, record.OutputFields)
	require.NoError(t, err)
	flags, err := events.FlagsFromOutput(decoded.Transpose(), events.TriggerField)
	require.NoError(t, err)

	a, err := events.New(256)
	require.NoError(t, err)
	rep := a.Analyze(flags)
	assert.Equal(t, p.Channels, rep.Channels)
	assert.Equal(t, p.Samples, rep.Samples)
	assert.NotEmpty(t, rep.Episodes, "injected pulses must trigger the loopback device")
	for _, e := range rep.Long {
		assert.GreaterOrEqual(t, e.Duration(), 256)
	}
}

func TestStreamMatchesProcess(t *testing.T) {
	p := waveform.DefaultParams(4, 600, 77)
	ls, err := waveform.NewLockstep(p)
	require.NoError(t, err)
	cal := calib.FromChannels(ls.Channels(), calib.DefaultOptions())

	ds, err := waveform.Generate(context.Background(), p)
	require.NoError(t, err)
	batch, err := Loopback{}.Process(cal, ds.Matrix().Transpose())
	require.NoError(t, err)

	st := NewStream(cal)
	for {
		frame, ok := ls.Next()
		if !ok {
			break
		}
		for _, s := range frame {
			flag := st.Sample(s.Channel, s.I, s.Q)
			require.Equal(t, batch[s.T][s.Channel][2], flag, "t=%d ch=%d", s.T, s.Channel)
		}
	}
}
