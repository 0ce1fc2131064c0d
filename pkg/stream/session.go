package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tdm/pkg/calib"
	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/dut"
	"github.com/tdm/pkg/events"
	"github.com/tdm/pkg/waveform"
)

// Message types on the websocket.
const (
	TypeRun    = "run"
	TypeStatus = "status"
	TypeFrame  = "frame"
	TypeReport = "report"
)

// FrameMsg carries one time step for every channel.
type FrameMsg struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id"`
	T       int    `json:"t"`
	I       []int  `json:"i"`
	Q       []int  `json:"q"`
	Trigger []int  `json:"trigger"`
}

type StatusMsg struct {
	Type     string `json:"type"`
	RunID    string `json:"run_id,omitempty"`
	Running  bool   `json:"running"`
	Channels int    `json:"channels,omitempty"`
	Samples  int    `json:"samples,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ReportMsg struct {
	Type   string         `json:"type"`
	RunID  string         `json:"run_id"`
	Report *events.Report `json:"report"`
}

// RunRequest is sent by a client to start a run. Zero fields keep the server
// configuration.
type RunRequest struct {
	Type     string  `json:"type"`
	Seed     *uint64 `json:"seed,omitempty"`
	Channels int     `json:"channels,omitempty"`
	Samples  int     `json:"samples,omitempty"`
}

// Session is one generate -> loopback -> analyze pass done in lockstep, so
// memory stays O(channels) regardless of sample count.
type Session struct {
	RunID         uuid.UUID
	Params        waveform.Params
	Calib         calib.Options
	WatchdogLimit int
	FrameInterval time.Duration
}

// NewSession builds a session from a validated configuration.
func NewSession(cfg config.Config, seed uint64, frameInterval time.Duration) Session {
	return Session{
		RunID:         uuid.New(),
		Params:        waveform.FromConfig(cfg, seed),
		Calib:         calib.Options{ScaleFactor: cfg.ScaleFactor},
		WatchdogLimit: cfg.WatchdogLimit,
		FrameInterval: frameInterval,
	}
}

// Run emits a FrameMsg per time step and returns the episode report. Every
// message is freshly allocated, so emit may queue it.
func (s Session) Run(ctx context.Context, emit func(interface{})) (*events.Report, error) {
	if err := config.PositiveInt("watchdog_limit", s.WatchdogLimit); err != nil {
		return nil, err
	}
	gen, err := waveform.NewLockstep(s.Params)
	if err != nil {
		return nil, err
	}
	n := s.Params.Channels
	cal := calib.FromChannels(gen.Channels(), s.Calib)
	dev := dut.NewStream(cal)
	trackers := make([]events.Tracker, n)
	for ch := range trackers {
		trackers[ch] = events.Tracker{Channel: ch, Limit: s.WatchdogLimit}
	}
	rep := events.NewReport(s.WatchdogLimit, n, s.Params.Samples)
	runID := s.RunID.String()

	var tick <-chan time.Time
	if s.FrameInterval > 0 {
		ticker := time.NewTicker(s.FrameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		frame, ok := gen.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg := &FrameMsg{Type: TypeFrame, RunID: runID, T: frame[0].T, I: make([]int, n), Q: make([]int, n), Trigger: make([]int, n)}
		for _, smp := range frame {
			flag := dev.Sample(smp.Channel, smp.I, smp.Q)
			msg.I[smp.Channel], msg.Q[smp.Channel], msg.Trigger[smp.Channel] = smp.I, smp.Q, flag
			if e, done := trackers[smp.Channel].Feed(flag == 1); done {
				rep.Add(e)
			}
		}
		emit(msg)
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-tick:
			}
		}
	}
	for ch := range trackers {
		if e, done := trackers[ch].Flush(); done {
			rep.Add(e)
		}
	}
	rep.Sort()
	return rep, nil
}
