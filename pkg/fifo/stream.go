package fifo

import (
	"context"

	"github.com/tdm/pkg/record"
)

// Send creates the pipe at path, waits for a reader and writes flat as text
// records of the given arity. The pipe is closed afterwards so the reader sees
// EOF.
func Send(ctx context.Context, path string, flat []int, fields int) (int, error) {
	if err := Create(path); err != nil {
		return 0, err
	}
	p, err := OpenWriter(ctx, path)
	if err != nil {
		return 0, err
	}
	w := record.NewWriter(p)
	if err := w.WriteFlat(flat, fields); err != nil {
		p.Close()
		return w.Records(), err
	}
	if err := w.Flush(); err != nil {
		p.Close()
		return w.Records(), err
	}
	return w.Records(), p.Close()
}

// Receive waits for a writer on path, which must already be a named pipe, and
// parses text records until the writer closes its end. ctx bounds the wait for
// a writer.
func Receive(ctx context.Context, path string, fields int) ([]int, error) {
	p, err := OpenReader(ctx, path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return record.ReadAll(p, fields)
}
