package capture

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/record"
)

func TestWriteReadInput(t *testing.T) {
	m := record.Matrix{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
	}
	cfg := config.Default()
	cfg.Channels, cfg.Samples = 2, 3
	meta := Metadata{RunID: uuid.New(), Kind: "input", Config: cfg}

	var buf bytes.Buffer
	n, err := WriteMatrix(&buf, m, meta)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	rows, got, err := ReadFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, meta.RunID, got.RunID)
	assert.Equal(t, "input", got.Kind)
	assert.Equal(t, 2, got.Config.Channels)
	assert.Equal(t, 3, got.Config.Samples)

	// Stream order: t outer, channel inner.
	assert.Equal(t, Row{T: 0, Channel: 1, I: 7, Q: 8}, rows[1])
	assert.Equal(t, Row{T: 2, Channel: 0, I: 5, Q: 6}, rows[4])
	for _, r := range rows {
		assert.Nil(t, r.Trigger)
	}
}

func TestWriteReadOutput(t *testing.T) {
	m := record.Matrix{{{1, 2, 0}, {3, 4, 1}}}
	var buf bytes.Buffer
	_, err := WriteMatrix(&buf, m, Metadata{RunID: uuid.New(), Kind: "output", Config: config.Default()})
	require.NoError(t, err)

	rows, _, err := ReadFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].Trigger)
	assert.Equal(t, int32(1), *rows[1].Trigger)
	assert.Equal(t, int32(0), *rows[0].Trigger)
}

func TestWriteRejectsNarrowRecords(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteMatrix(&buf, record.Matrix{{{1}}}, Metadata{})
	assert.ErrorIs(t, err, record.ErrFormat)
}
