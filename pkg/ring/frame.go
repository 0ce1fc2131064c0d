package ring

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tdm/pkg/record"
	"github.com/tdm/pkg/waveform"
)

// ErrFull is returned by Write when the reader is behind.
var ErrFull = errors.New("ring: not enough free space")

// Bytes per channel in a frame: int16 I then int16 Q, little endian.
const sampleBytes = 4

const pollInterval = time.Millisecond

// FrameSize is the encoded size of one time step.
func FrameSize(channels int) int { return channels * sampleBytes }

// AppendFrame encodes one time step in channel order. Samples are already
// saturated to the 16-bit range.
func AppendFrame(dst []byte, frame []waveform.Sample) []byte {
	for _, s := range frame {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(s.I)))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(s.Q)))
	}
	return dst
}

// DecodeFrame turns one encoded time step back into 2-field input records.
func DecodeFrame(b []byte, channels int) ([]record.Record, error) {
	if len(b) != FrameSize(channels) {
		return nil, &record.FormatError{Reason: fmt.Sprintf("frame is %d bytes, want %d", len(b), FrameSize(channels))}
	}
	out := make([]record.Record, channels)
	for ch := range out {
		off := ch * sampleBytes
		i := int16(binary.LittleEndian.Uint16(b[off:]))
		q := int16(binary.LittleEndian.Uint16(b[off+2:]))
		out[ch] = record.Record{int(i), int(q)}
	}
	return out, nil
}

// Publish writes every frame gen produces, waiting while the ring is full, and
// marks the ring finished. It returns the number of frames written.
func Publish(ctx context.Context, r *Ring, gen *waveform.Lockstep) (int, error) {
	if len(gen.Channels()) != r.Channels() {
		return 0, fmt.Errorf("ring has %d channels, generator %d", r.Channels(), len(gen.Channels()))
	}
	buf := make([]byte, 0, FrameSize(r.Channels()))
	frames := 0
	for {
		frame, ok := gen.Next()
		if !ok {
			break
		}
		buf = AppendFrame(buf[:0], frame)
		for {
			_, err := r.Write(buf)
			if err == nil {
				break
			}
			if !errors.Is(err, ErrFull) {
				return frames, err
			}
			select {
			case <-ctx.Done():
				return frames, ctx.Err()
			case <-time.After(pollInterval):
			}
		}
		frames++
	}
	r.Finish()
	return frames, nil
}

// ReadFrame waits for one complete frame and fills buf, which must be
// FrameSize(r.Channels()) long. It returns io.EOF after the last frame.
func ReadFrame(ctx context.Context, r *Ring, buf []byte) error {
	need := uint64(len(buf))
	for {
		// Check Finished before Used: the writer sets Done after its last write.
		done := r.Finished()
		if r.Used() >= need {
			_, err := r.Read(buf)
			return err
		}
		if done {
			if r.Used() != 0 {
				return &record.FormatError{Reason: fmt.Sprintf("ring ends with %d bytes of a partial frame", r.Used())}
			}
			return io.EOF
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
