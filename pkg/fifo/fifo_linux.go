//go:build linux

// Package fifo hands record streams to an external simulator through a named
// pipe, the same way the bench simulator feeds the capture path.
package fifo

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Tune buffer for throughput
const maxPipeSize = 1024 * 1024

const retryInterval = 100 * time.Millisecond

// Pipe is an open end of a named pipe.
type Pipe struct {
	fd int
}

// Create makes a named pipe at path. A stale pipe is replaced; any other file
// at path is left alone and reported as an error.
func Create(path string) error {
	fi, err := os.Lstat(path)
	switch {
	case err == nil && fi.Mode()&os.ModeNamedPipe == 0:
		return fmt.Errorf("mkfifo %s: %s exists and is not a named pipe", path, fi.Mode().Type())
	case err == nil:
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale fifo %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := unix.Mkfifo(path, 0666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// OpenWriter waits until a reader has the pipe open, then returns the write
// end in blocking mode.
func OpenWriter(ctx context.Context, path string) (*Pipe, error) {
	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			if err := unix.SetNonblock(fd, false); err != nil {
				unix.Close(fd)
				return nil, fmt.Errorf("set blocking %s: %w", path, err)
			}
			_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETPIPE_SZ, maxPipeSize)
			return &Pipe{fd: fd}, nil
		}
		if err != unix.ENXIO && err != unix.EINTR {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// OpenReader waits until a writer has data on the pipe or ctx is done, then
// returns the read end in blocking mode.
func OpenReader(ctx context.Context, path string) (*Pipe, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A fresh read end reports neither POLLIN nor POLLHUP until a writer shows up.
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			unix.Close(fd)
			return nil, err
		}
		n, err := unix.Poll(fds, int(retryInterval/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("poll %s: %w", path, err)
		}
		if n > 0 && fds[0].Revents != 0 {
			break
		}
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set blocking %s: %w", path, err)
	}
	_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETPIPE_SZ, maxPipeSize)
	return &Pipe{fd: fd}, nil
}

func (p *Pipe) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := unix.Write(p.fd, b[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return written, fmt.Errorf("write failed after %d bytes: %w", written, err)
		}
	}
	return written, nil
}

func (p *Pipe) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 && len(b) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (p *Pipe) Close() error {
	if p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}
