//go:build linux

package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/calib"
	"github.com/tdm/pkg/dut"
	"github.com/tdm/pkg/events"
	"github.com/tdm/pkg/ring"
	"github.com/tdm/pkg/waveform"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRunReportsTriggers(t *testing.T) {
	dir := t.TempDir()
	p := waveform.DefaultParams(3, 600, 9)
	shm := filepath.Join(dir, "ring")
	w, err := ring.Create(shm, uint64(ring.FrameSize(3)*p.Samples+1), 3)
	require.NoError(t, err)
	defer w.Close()

	gen, err := waveform.NewLockstep(p)
	require.NoError(t, err)
	cal := calib.FromChannels(gen.Channels(), calib.DefaultOptions())
	calPath := filepath.Join(dir, "config_tdm.txt")
	require.NoError(t, calib.WriteFile(calPath, cal))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := ring.Publish(ctx, w, gen)
	require.NoError(t, err)
	require.Equal(t, p.Samples, n)

	rep, err := run(ctx, options{shm: shm, calib: calPath, watchdog: 256}, quietLog())
	require.NoError(t, err)

	ds, err := waveform.Generate(context.Background(), p)
	require.NoError(t, err)
	out, err := dut.Loopback{}.Process(cal, ds.Matrix().Transpose())
	require.NoError(t, err)
	flags, err := events.FlagsFromOutput(out.Transpose(), events.TriggerField)
	require.NoError(t, err)
	a, err := events.New(256)
	require.NoError(t, err)
	assert.Equal(t, a.Analyze(flags), rep)
}

func TestRunReturnsErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := run(context.Background(), options{shm: filepath.Join(dir, "missing"), watchdog: 256}, quietLog())
	assert.ErrorContains(t, err, "open ring")

	shm := filepath.Join(dir, "ring")
	w, err := ring.Create(shm, uint64(ring.FrameSize(2)*8+1), 2)
	require.NoError(t, err)
	defer w.Close()
	_, err = run(context.Background(), options{shm: shm, calib: filepath.Join(dir, "none.txt"), watchdog: 256}, quietLog())
	assert.ErrorContains(t, err, "read calibration")
}

func TestRunStopsOnCancel(t *testing.T) {
	shm := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(shm, uint64(ring.FrameSize(2)*8+1), 2)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = run(ctx, options{shm: shm, watchdog: 256}, quietLog())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
