package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/record"
)

func TestScanWatchdogExample(t *testing.T) {
	flags := Bools([]int{0, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 0})
	eps := Scan(0, flags, 6)
	require.Len(t, eps, 2)

	assert.Equal(t, Episode{Channel: 0, Start: 1, End: 4, Long: false}, eps[0])
	assert.Equal(t, 3, eps[0].Duration())
	assert.Equal(t, Episode{Channel: 0, Start: 5, End: 11, Long: true}, eps[1])
	assert.Equal(t, 6, eps[1].Duration())
}

func TestScanAllZero(t *testing.T) {
	assert.Empty(t, Scan(0, make([]bool, 500), 256))
	assert.Empty(t, Scan(0, nil, 256))
}

func TestScanImplicitBoundaries(t *testing.T) {
	eps := Scan(2, Bools([]int{1, 1, 0, 1}), 2)
	assert.Equal(t, []Episode{
		{Channel: 2, Start: 0, End: 2, Long: true},
		{Channel: 2, Start: 3, End: 4, Long: false},
	}, eps)

	eps = Scan(0, Bools([]int{1, 1, 1}), 3)
	assert.Equal(t, []Episode{{Start: 0, End: 3, Long: true}}, eps)
}

func TestTrackerStreaming(t *testing.T) {
	tr := Tracker{Channel: 1, Limit: 4}
	var got []Episode
	for _, f := range []bool{false, true, true, false, false, true} {
		if e, ok := tr.Feed(f); ok {
			got = append(got, e)
		}
	}
	require.Len(t, got, 1)
	e, ok := tr.Flush()
	require.True(t, ok)
	assert.Equal(t, Episode{Channel: 1, Start: 5, End: 6}, e)

	_, ok = tr.Flush()
	assert.False(t, ok)
}

func TestNewRejectsLimit(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestAnalyze(t *testing.T) {
	a, err := New(3)
	require.NoError(t, err)
	rep := a.Analyze([][]bool{
		Bools([]int{0, 1, 1, 1, 0}),
		Bools([]int{0, 0, 0, 0, 0}),
		Bools([]int{1, 0, 1, 1, 0}),
	})
	assert.Equal(t, 3, rep.Channels)
	assert.Equal(t, 5, rep.Samples)
	assert.Len(t, rep.Episodes, 3)
	assert.Equal(t, []Episode{{Channel: 0, Start: 1, End: 4, Long: true}}, rep.Long)
	assert.Len(t, rep.ChannelEpisodes(2), 2)
	assert.Empty(t, rep.ChannelEpisodes(1))
	assert.Equal(t, 6, rep.ActiveSamples())
}

func TestFlagsFromOutput(t *testing.T) {
	frames, err := record.Decode([]int{
		10, 20, 0, 11, 21, 1,
		12, 22, 1, 13, 23, 1,
	}, 2, record.OutputFields)
	require.NoError(t, err)
	flags, err := FlagsFromOutput(frames.Transpose(), TriggerField)
	require.NoError(t, err)
	assert.Equal(t, [][]bool{{false, true}, {true, true}}, flags)

	bad := record.Matrix{{{1, 2, 7}}}
	_, err = FlagsFromOutput(bad, TriggerField)
	assert.ErrorIs(t, err, record.ErrFormat)

	_, err = FlagsFromOutput(record.Matrix{{{1, 2}}}, TriggerField)
	assert.ErrorIs(t, err, record.ErrFormat)
}

func TestReportSort(t *testing.T) {
	rep := NewReport(2, 2, 10)
	rep.Add(Episode{Channel: 1, Start: 0, End: 4, Long: true})
	rep.Add(Episode{Channel: 0, Start: 5, End: 6})
	rep.Add(Episode{Channel: 0, Start: 1, End: 3, Long: true})
	rep.Sort()
	assert.Equal(t, []Episode{
		{Channel: 0, Start: 1, End: 3, Long: true},
		{Channel: 0, Start: 5, End: 6},
		{Channel: 1, Start: 0, End: 4, Long: true},
	}, rep.Episodes)
	assert.Equal(t, 0, rep.Long[0].Channel)
}
