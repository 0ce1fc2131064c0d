//go:build linux

package fifo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdm/pkg/record"
)

func TestSendThroughPipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_tdm.fifo")
	flat := []int{1, 2, 7, 8, 3, 4, 9, 10, 5, 6, 11, 12}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := Send(ctx, path, flat, record.InputFields)
		done <- result{n, err}
	}()

	// Wait for the writer to create the pipe before opening the read end.
	require.Eventually(t, func() bool {
		fi, err := os.Stat(path)
		return err == nil && fi.Mode()&os.ModeNamedPipe != 0
	}, 5*time.Second, 10*time.Millisecond)

	r, err := OpenReader(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	got, err := record.ReadAll(r, record.InputFields)
	require.NoError(t, err)
	assert.Equal(t, flat, got)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 6, res.n)
}

func TestOpenWriterHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lonely.fifo")
	require.NoError(t, Create(path))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := OpenWriter(ctx, path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReceiveFromDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output_tdm.fifo")
	require.NoError(t, Create(path))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		w, err := OpenWriter(ctx, path)
		if err != nil {
			errc <- err
			return
		}
		_, err = w.Write([]byte("1 2 0\n3 4 1\n"))
		w.Close()
		errc <- err
	}()

	got, err := Receive(ctx, path, record.OutputFields)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0, 3, 4, 1}, got)
	require.NoError(t, <-errc)
}

func TestOpenReaderHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silent.fifo")
	require.NoError(t, Create(path))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Receive(ctx, path, record.OutputFields)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCreateKeepsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output_tdm.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2 0\n"), 0644))

	err := Create(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a named pipe")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1 2 0\n", string(data))
}

func TestCreateReplacesStalePipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input_tdm.fifo")
	require.NoError(t, Create(path))
	require.NoError(t, Create(path))

	fi, err := os.Lstat(path)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeNamedPipe)
}
