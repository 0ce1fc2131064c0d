package events

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/record"
)

// TriggerField is the flag position in a processed output record.
const TriggerField = record.TriggerIndex

// Analyzer scans channels against a watchdog limit.
type Analyzer struct {
	Limit int
}

func New(limit int) (*Analyzer, error) {
	if err := config.PositiveInt("watchdog_limit", limit); err != nil {
		return nil, err
	}
	return &Analyzer{Limit: limit}, nil
}

// Report is the outcome for a whole output stream.
type Report struct {
	Limit    int       `json:"watchdog_limit"`
	Channels int       `json:"channels"`
	Samples  int       `json:"samples"`
	Episodes []Episode `json:"episodes"`
	Long     []Episode `json:"long_episodes"`
}

// NewReport starts an empty report for incremental use with Add.
func NewReport(limit, channels, samples int) *Report {
	return &Report{Limit: limit, Channels: channels, Samples: samples}
}

// Add records one episode, e.g. from a Tracker.
func (r *Report) Add(e Episode) {
	r.Episodes = append(r.Episodes, e)
	if e.Long {
		r.Long = append(r.Long, e)
	}
}

// Sort orders episodes by channel, then start. Streaming producers emit them
// in end order.
func (r *Report) Sort() {
	byPos := func(a, b Episode) int {
		if c := cmp.Compare(a.Channel, b.Channel); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	}
	slices.SortFunc(r.Episodes, byPos)
	slices.SortFunc(r.Long, byPos)
}

// ChannelEpisodes filters the report to one channel.
func (r *Report) ChannelEpisodes(ch int) []Episode {
	var out []Episode
	for _, e := range r.Episodes {
		if e.Channel == ch {
			out = append(out, e)
		}
	}
	return out
}

// ActiveSamples sums the duration of all episodes.
func (r *Report) ActiveSamples() int {
	n := 0
	for _, e := range r.Episodes {
		n += e.Duration()
	}
	return n
}

// Analyze scans each channel's flags independently, in channel order.
func (a *Analyzer) Analyze(flags [][]bool) *Report {
	rep := NewReport(a.Limit, len(flags), 0)
	for ch, f := range flags {
		if len(f) > rep.Samples {
			rep.Samples = len(f)
		}
		for _, e := range Scan(ch, f, a.Limit) {
			rep.Add(e)
		}
	}
	return rep
}

// FlagsFromOutput pulls the trigger column out of a decoded output matrix.
// Flags other than 0 and 1 are a FormatError.
func FlagsFromOutput(m record.Matrix, field int) ([][]bool, error) {
	out := make([][]bool, len(m))
	for ch, row := range m {
		flags := make([]bool, len(row))
		for t, r := range row {
			if field >= len(r) {
				return nil, &record.FormatError{Reason: fmt.Sprintf("channel %d sample %d has no field %d", ch, t, field)}
			}
			switch r[field] {
			case 0:
			case 1:
				flags[t] = true
			default:
				return nil, &record.FormatError{Reason: fmt.Sprintf("channel %d sample %d: trigger flag %d is not 0 or 1", ch, t, r[field])}
			}
		}
		out[ch] = flags
	}
	return out, nil
}
