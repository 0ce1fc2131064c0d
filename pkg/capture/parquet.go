// Package capture exports sample matrices to Parquet for offline inspection.
// Rows follow stream order (time-major) and the file metadata carries the run
// configuration so a capture can be regenerated.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/segmentio/parquet-go"

	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/record"
)

// Metadata keys stored in the parquet footer.
const (
	KeyConfig = "config"
	KeyRunID  = "run_id"
	KeyKind   = "kind"
)

// Row is one (t, channel) sample. Trigger is only set for device output.
type Row struct {
	T       int32  `parquet:"t"`
	Channel int32  `parquet:"channel"`
	I       int32  `parquet:"i"`
	Q       int32  `parquet:"q"`
	Trigger *int32 `parquet:"trigger,optional"`
}

// Metadata describes what a capture file holds.
type Metadata struct {
	RunID  uuid.UUID
	Kind   string // "input" or "output"
	Config config.Config
}

// NewWriter creates a generic parquet writer with our schema and metadata.
func NewWriter(w io.Writer, meta Metadata) *parquet.GenericWriter[Row] {
	configStr := "{}"
	if b, err := json.Marshal(meta.Config); err == nil {
		configStr = string(b)
	}
	return parquet.NewGenericWriter[Row](w,
		parquet.KeyValueMetadata(KeyConfig, configStr),
		parquet.KeyValueMetadata(KeyRunID, meta.RunID.String()),
		parquet.KeyValueMetadata(KeyKind, meta.Kind),
	)
}

// WriteMatrix writes m (2-field input or 3-field output records) and closes the
// parquet writer, not w. It returns the number of rows written.
func WriteMatrix(w io.Writer, m record.Matrix, meta Metadata) (int, error) {
	channels, samples, fields := m.Shape()
	if channels > 0 && samples > 0 && fields < record.InputFields {
		return 0, &record.FormatError{Reason: fmt.Sprintf("capture needs at least %d fields, got %d", record.InputFields, fields)}
	}
	pw := NewWriter(w, meta)
	frame := make([]Row, channels)
	total := 0
	for t := 0; t < samples; t++ {
		for ch := 0; ch < channels; ch++ {
			r := m[ch][t]
			row := Row{T: int32(t), Channel: int32(ch), I: int32(r[0]), Q: int32(r[1])}
			if len(r) > record.TriggerIndex {
				v := int32(r[record.TriggerIndex])
				row.Trigger = &v
			}
			frame[ch] = row
		}
		n, err := pw.Write(frame)
		total += n
		if err != nil {
			pw.Close()
			return total, fmt.Errorf("write frame %d: %w", t, err)
		}
	}
	if err := pw.Close(); err != nil {
		return total, err
	}
	return total, nil
}

// ReadFile loads every row and the metadata back from a capture.
func ReadFile(r io.ReaderAt, size int64) ([]Row, Metadata, error) {
	var meta Metadata
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, meta, fmt.Errorf("open parquet: %w", err)
	}
	if v, ok := f.Lookup(KeyConfig); ok {
		if err := json.Unmarshal([]byte(v), &meta.Config); err != nil {
			return nil, meta, fmt.Errorf("decode config metadata: %w", err)
		}
	}
	if v, ok := f.Lookup(KeyRunID); ok {
		if meta.RunID, err = uuid.Parse(v); err != nil {
			return nil, meta, fmt.Errorf("decode run id: %w", err)
		}
	}
	meta.Kind, _ = f.Lookup(KeyKind)

	reader := parquet.NewGenericReader[Row](r)
	defer reader.Close()
	rows := make([]Row, reader.NumRows())
	read := 0
	for read < len(rows) {
		n, err := reader.Read(rows[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, meta, err
		}
		if n == 0 {
			break
		}
	}
	return rows[:read], meta, nil
}
