//go:build linux

// Command ringreader consumes frames from a shared-memory ring published by
// `tdm gen --shm`. With -calib it also runs the loopback trigger on every
// frame and prints the episode report, acting as a stand-in device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdm/pkg/calib"
	"github.com/tdm/pkg/dut"
	"github.com/tdm/pkg/events"
	"github.com/tdm/pkg/ring"
)

type options struct {
	shm      string
	calib    string
	watchdog int
}

func main() {
	var opts options
	flag.StringVar(&opts.shm, "shm", "/dev/shm/tdm_ring", "shared-memory ring path")
	flag.StringVar(&opts.calib, "calib", "", "calibration stream; enables the loopback trigger")
	flag.IntVar(&opts.watchdog, "watchdog", 256, "watchdog limit for the episode report")
	flag.Parse()

	log := logrus.WithField("component", "ringreader")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rep, err := run(ctx, opts, log)
	stop()
	if err != nil {
		log.WithError(err).Fatal("ringreader failed")
	}
	if rep == nil {
		return
	}
	log.WithFields(logrus.Fields{
		"episodes":       len(rep.Episodes),
		"long_episodes":  len(rep.Long),
		"active_samples": rep.ActiveSamples(),
	}).Info("trigger report")
	for _, e := range rep.Long {
		log.WithFields(logrus.Fields{"channel": e.Channel, "start": e.Start, "end": e.End}).Warn("episode reached watchdog limit")
	}
}

// run drains the ring until the publisher finishes. The report is nil unless
// opts.calib is set.
func run(ctx context.Context, opts options, log *logrus.Entry) (*events.Report, error) {
	r, err := ring.Open(opts.shm)
	if err != nil {
		return nil, fmt.Errorf("open ring: %w", err)
	}
	defer r.Close()
	channels := r.Channels()
	log.WithFields(logrus.Fields{"shm": opts.shm, "channels": channels}).Info("connected")

	var (
		dev      *dut.Stream
		trackers []events.Tracker
	)
	if opts.calib != "" {
		cal, err := calib.ReadFile(opts.calib, channels)
		if err != nil {
			return nil, fmt.Errorf("read calibration: %w", err)
		}
		dev = dut.NewStream(cal)
		trackers = make([]events.Tracker, channels)
		for ch := range trackers {
			trackers[ch] = events.Tracker{Channel: ch, Limit: opts.watchdog}
		}
	}

	buf := make([]byte, ring.FrameSize(channels))
	rep := events.NewReport(opts.watchdog, channels, 0)
	lastReport := time.Now()
	frames := 0
	for {
		err := ring.ReadFrame(ctx, r, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frames, err)
		}
		frame, err := ring.DecodeFrame(buf, channels)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", frames, err)
		}
		if dev != nil {
			out, err := dev.Step(frame)
			if err != nil {
				return nil, fmt.Errorf("trigger frame %d: %w", frames, err)
			}
			for ch, o := range out {
				if e, done := trackers[ch].Feed(o[events.TriggerField] == 1); done {
					rep.Add(e)
				}
			}
		}
		frames++
		if time.Since(lastReport) >= time.Second {
			log.WithFields(logrus.Fields{"frames": frames, "backlog": r.Used()}).Info("progress")
			lastReport = time.Now()
		}
	}
	log.WithField("frames", frames).Info("ring finished")

	if dev == nil {
		return nil, nil
	}
	for ch := range trackers {
		if e, done := trackers[ch].Flush(); done {
			rep.Add(e)
		}
	}
	rep.Samples = frames
	rep.Sort()
	return rep, nil
}
