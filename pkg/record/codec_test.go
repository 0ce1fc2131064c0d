package record

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/config"
)

func exampleMatrix() Matrix {
	return Matrix{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
	}
}

func randomMatrix(rng *rand.Rand, channels, samples, fields int) Matrix {
	m := make(Matrix, channels)
	for ch := range m {
		m[ch] = make([]Record, samples)
		for t := range m[ch] {
			r := make(Record, fields)
			for f := range r {
				r[f] = rng.IntN(65535) - 32767
			}
			m[ch][t] = r
		}
	}
	return m
}

func TestEncodeIsTimeMajor(t *testing.T) {
	flat, err := Encode(exampleMatrix())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 7, 8, 3, 4, 9, 10, 5, 6, 11, 12}, flat)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	shapes := [][3]int{{1, 1, 1}, {2, 3, 2}, {5, 17, 3}, {13, 4, 6}, {1, 50, 2}}
	for _, s := range shapes {
		m := randomMatrix(rng, s[0], s[1], s[2])
		flat, err := Encode(m)
		require.NoError(t, err)
		require.Len(t, flat, s[0]*s[1]*s[2])

		frames, err := Decode(flat, s[0], s[2])
		require.NoError(t, err)
		require.Len(t, frames, s[1])
		if diff := cmp.Diff(m, frames.Transpose()); diff != "" {
			t.Fatalf("shape %v round trip mismatch (-want +got):\n%s", s, diff)
		}
	}
}

func TestDecodeIndivisibleLength(t *testing.T) {
	_, err := Decode(make([]int, 7), 3, 2)
	require.Error(t, err)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDecodeRejectsBadShape(t *testing.T) {
	_, err := Decode([]int{1, 2}, 0, 2)
	assert.ErrorIs(t, err, config.ErrConfig)
	_, err = Decode([]int{1, 2}, 1, 0)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestDecodeDoesNotCopy(t *testing.T) {
	flat := []int{1, 2, 3, 4}
	frames, err := Decode(flat, 2, 2)
	require.NoError(t, err)
	m := frames.Transpose()
	assert.Equal(t, Record{3, 4}, m[1][0])
	assert.Equal(t, []int{1, 2, 3, 4}, flat, "decode must not mutate its input")
}

func TestEncodeRagged(t *testing.T) {
	_, err := Encode(Matrix{{{1, 2}, {3, 4}}, {{5, 6}}})
	assert.ErrorIs(t, err, ErrFormat)
	_, err = Encode(Matrix{{{1, 2}}, {{5}}})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestMatrixTransposeInverse(t *testing.T) {
	m := exampleMatrix()
	assert.Equal(t, m, m.Transpose().Transpose())
}

func TestConcatSplit(t *testing.T) {
	recs := []Record{{1, 2, 3, 4, 5, 6}, {7, 8, 9, 10, 11, 12}}
	flat := Concat(recs)
	got, err := Split(flat, CalibrationFields)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	_, err = Split(flat[:5], CalibrationFields)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestTextRoundTrip(t *testing.T) {
	flat, err := Encode(exampleMatrix())
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFlat(flat, InputFields))
	require.NoError(t, w.Flush())
	assert.Equal(t, 6, w.Records())
	assert.True(t, strings.HasPrefix(buf.String(), "1 2\n7 8\n3 4\n"))

	got, err := ReadAll(&buf, InputFields)
	require.NoError(t, err)
	assert.Equal(t, flat, got)
}

func TestReadAllErrors(t *testing.T) {
	_, err := ReadAll(strings.NewReader("1 2\n3\n"), 2)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Line)

	_, err = ReadAll(strings.NewReader("1 x\n"), 2)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Line)

	got, err := ReadAll(strings.NewReader("1\t-2\n\n  3   4  \n"), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, -2, 3, 4}, got)
}

func TestFileCompression(t *testing.T) {
	flat := Concat([]Record{{1, 2, 1}, {-3, 4, 0}, {32767, -32767, 1}})
	for _, name := range []string{"out.txt", "out.txt.gz", "out.txt.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteFile(path, flat, OutputFields))
			got, err := ReadFile(path, OutputFields)
			require.NoError(t, err)
			assert.Equal(t, flat, got)
		})
	}
}
