package record

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type fileWriter struct {
	io.Writer
	enc  io.Closer // nil for plain files
	file *os.File
}

func (f *fileWriter) Close() error {
	if f.enc != nil {
		if err := f.enc.Close(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

// Create opens path for writing. A ".zst" or ".gz" suffix selects compression.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	switch {
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return &fileWriter{Writer: enc, enc: enc, file: f}, nil
	case strings.HasSuffix(path, ".gz"):
		enc := gzip.NewWriter(f)
		return &fileWriter{Writer: enc, enc: enc, file: f}, nil
	default:
		return &fileWriter{Writer: f, file: f}, nil
	}
}

type fileReader struct {
	io.Reader
	closeDec func()
	file     *os.File
}

func (f *fileReader) Close() error {
	if f.closeDec != nil {
		f.closeDec()
	}
	return f.file.Close()
}

// Open mirrors Create for reading.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return &fileReader{Reader: dec, closeDec: dec.Close, file: f}, nil
	case strings.HasSuffix(path, ".gz"):
		dec, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return &fileReader{Reader: dec, closeDec: func() { dec.Close() }, file: f}, nil
	default:
		return &fileReader{Reader: f, file: f}, nil
	}
}

// ReadFile opens, decompresses and parses a whole stream file.
func ReadFile(path string, fields int) ([]int, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	flat, err := ReadAll(r, fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flat, nil
}

// WriteFile writes a flat stream to path as text tuples.
func WriteFile(path string, flat []int, fields int) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	w := NewWriter(f)
	if err := w.WriteFlat(flat, fields); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
