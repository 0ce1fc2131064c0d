package record

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Writer emits one tuple per line with single-space separated fields, the
// format the VHDL testbench reads with textio.
type Writer struct {
	w       *bufio.Writer
	buf     []byte
	records int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 1<<20)}
}

func (w *Writer) Write(r Record) error {
	w.buf = w.buf[:0]
	for i, v := range r {
		if i > 0 {
			w.buf = append(w.buf, ' ')
		}
		w.buf = strconv.AppendInt(w.buf, int64(v), 10)
	}
	w.buf = append(w.buf, '\n')
	w.records++
	_, err := w.w.Write(w.buf)
	return err
}

// WriteFlat writes a flat stream as records of the given arity.
func (w *Writer) WriteFlat(flat []int, fields int) error {
	records, err := Split(flat, fields)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Records reports how many tuples were written so far.
func (w *Writer) Records() int { return w.records }

func (w *Writer) Flush() error { return w.w.Flush() }

// ReadAll parses a whole text stream into a flat slice. Blank lines are
// skipped; every other line must hold exactly fields integers.
func ReadAll(r io.Reader, fields int) ([]int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	var out []int
	line := 0
	for sc.Scan() {
		line++
		tokens := strings.Fields(sc.Text())
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) != fields {
			return nil, &FormatError{Line: line, Reason: "expected " + strconv.Itoa(fields) + " fields, got " + strconv.Itoa(len(tokens))}
		}
		for _, tok := range tokens {
			v, err := strconv.Atoi(tok)
			if err != nil {
				return nil, &FormatError{Line: line, Reason: "not an integer: " + strconv.Quote(tok)}
			}
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
