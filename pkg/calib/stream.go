package calib

import (
	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/record"
)

// Fields returns the record in calibration stream order.
func (r Record) Fields() record.Record {
	return record.Record{r.MeanI, r.MeanQ, r.ProjI, r.ProjQ, r.Hi, r.Lo}
}

// Encode flattens records channel-major, one tuple per channel.
func Encode(recs []Record) []int {
	tuples := make([]record.Record, len(recs))
	for i, r := range recs {
		tuples[i] = r.Fields()
	}
	return record.Concat(tuples)
}

// Decode parses a calibration stream and checks it covers exactly channels
// channels.
func Decode(flat []int, channels int) ([]Record, error) {
	if err := config.PositiveInt("channels", channels); err != nil {
		return nil, err
	}
	tuples, err := record.Split(flat, record.CalibrationFields)
	if err != nil {
		return nil, err
	}
	if err := config.CheckChannelCounts(len(tuples), channels); err != nil {
		return nil, err
	}
	out := make([]Record, len(tuples))
	for ch, f := range tuples {
		out[ch] = Record{Channel: ch, MeanI: f[0], MeanQ: f[1], ProjI: f[2], ProjQ: f[3], Hi: f[4], Lo: f[5]}
	}
	return out, nil
}

// WriteFile stores the calibration stream as text tuples.
func WriteFile(path string, recs []Record) error {
	return record.WriteFile(path, Encode(recs), record.CalibrationFields)
}

func ReadFile(path string, channels int) ([]Record, error) {
	flat, err := record.ReadFile(path, record.CalibrationFields)
	if err != nil {
		return nil, err
	}
	return Decode(flat, channels)
}
