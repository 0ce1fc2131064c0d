package waveform

// Lockstep generates all channels one time step at a time. Only the channel
// draws and one frame of samples are held, so memory is O(N) instead of the
// O(N*T) a transposed batch needs. Frames are bit-identical to Generate.
type Lockstep struct {
	p        Params
	channels []Channel
	noise    []noiseDraw
	t        int
	frame    []Sample
}

func NewLockstep(p Params) (*Lockstep, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	ls := &Lockstep{
		p:        p,
		channels: make([]Channel, p.Channels),
		noise:    make([]noiseDraw, p.Channels),
		frame:    make([]Sample, p.Channels),
	}
	for id := range ls.channels {
		rng := p.source(id)
		ls.channels[id] = DrawChannel(id, p, rng)
		ls.noise[id] = noiseDraw{rng: rng, sigma: p.NoiseSigma}
	}
	return ls, nil
}

// Channels exposes the draws, e.g. for calibration before streaming starts.
func (ls *Lockstep) Channels() []Channel { return ls.channels }

// T is the index of the next frame.
func (ls *Lockstep) T() int { return ls.t }

// Next returns the frame for the current time step. The slice is reused by
// the following call. ok is false once all samples were produced.
func (ls *Lockstep) Next() (frame []Sample, ok bool) {
	if ls.t >= ls.p.Samples {
		return nil, false
	}
	for id := range ls.channels {
		ni, nq := ls.noise[id].next()
		i, q := ls.channels[id].Value(ls.t, ls.p, ni, nq)
		ls.frame[id] = Sample{Channel: id, T: ls.t, I: i, Q: q}
	}
	ls.t++
	return ls.frame, true
}
