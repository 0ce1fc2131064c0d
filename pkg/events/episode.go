// Package events finds trigger episodes in the device-under-test output and
// reports the ones that reach the watchdog limit. It only observes; whether the
// device caps episodes is a property of the device, not of this package.
package events

// Episode is a maximal run of active trigger flags on one channel. End is
// exclusive.
type Episode struct {
	Channel int  `json:"channel"`
	Start   int  `json:"start"`
	End     int  `json:"end"`
	Long    bool `json:"long"`
}

func (e Episode) Duration() int { return e.End - e.Start }

// Tracker detects runs one flag at a time with constant state. The flag
// sequence is treated as bounded by inactive samples on both ends.
type Tracker struct {
	Channel int
	Limit   int

	t      int
	active bool
	start  int
}

// Feed consumes the flag for the next sample. It returns a finished episode on
// a 1 -> 0 transition.
func (tr *Tracker) Feed(active bool) (Episode, bool) {
	defer func() { tr.t++ }()
	switch {
	case active && !tr.active:
		tr.active = true
		tr.start = tr.t
	case !active && tr.active:
		tr.active = false
		return tr.episode(tr.t), true
	}
	return Episode{}, false
}

// Flush closes a run still open at the end of the sequence.
func (tr *Tracker) Flush() (Episode, bool) {
	if !tr.active {
		return Episode{}, false
	}
	tr.active = false
	return tr.episode(tr.t), true
}

func (tr *Tracker) episode(end int) Episode {
	e := Episode{Channel: tr.Channel, Start: tr.start, End: end}
	e.Long = e.Duration() >= tr.Limit
	return e
}

// Scan returns every episode in flags, in order.
func Scan(channel int, flags []bool, limit int) []Episode {
	tr := Tracker{Channel: channel, Limit: limit}
	var out []Episode
	for _, f := range flags {
		if e, ok := tr.Feed(f); ok {
			out = append(out, e)
		}
	}
	if e, ok := tr.Flush(); ok {
		out = append(out, e)
	}
	return out
}

// Bools converts 0/1 flags; any nonzero value is active.
func Bools(flags []int) []bool {
	out := make([]bool, len(flags))
	for i, f := range flags {
		out[i] = f != 0
	}
	return out
}
