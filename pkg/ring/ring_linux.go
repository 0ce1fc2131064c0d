//go:build linux

// Package ring moves binary sample frames through a shared-memory ring so an
// external simulator can consume them without a text round trip. There is one
// writer and one reader; neither ever blocks the other inside the ring itself.
package ring

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tdm/pkg/config"
)

// Header sits at the very beginning of the shared memory.
type Header struct {
	Magic    uint64 // For validation
	Size     uint64 // Data size (excluding header)
	Head     uint64 // Writer position (byte offset)
	Tail     uint64 // Reader position (byte offset)
	Version  uint32
	Channels uint32
	Done     uint32 // set once the writer has published its last frame
	_        uint32
}

const (
	HeaderSize = uint64(unsafe.Sizeof(Header{}))
	MagicValue = 0x474e49525f4d4454 // "TDM_RING"
	Version    = 1
)

type Ring struct {
	fd     int
	data   []byte
	header *Header
	size   uint64
}

// Create makes a ring of size data bytes at path, replacing any existing
// file. Rings normally live under /dev/shm.
func Create(path string, size uint64, channels int) (*Ring, error) {
	if err := config.PositiveInt("channels", channels); err != nil {
		return nil, err
	}
	if size <= uint64(FrameSize(channels)) {
		return nil, &config.ConfigError{Field: "ring_size", Reason: fmt.Sprintf("%d bytes cannot hold one %d-channel frame", size, channels)}
	}
	if err := Remove(path); err != nil {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0666)
	if err != nil {
		return nil, fmt.Errorf("open shm %s: %w", path, err)
	}

	total := HeaderSize + size
	if err := unix.Ftruncate(fd, int64(total)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	r := &Ring{fd: fd, data: data, size: size}
	r.header = (*Header)(unsafe.Pointer(&data[0]))
	r.header.Size = size
	r.header.Version = Version
	r.header.Channels = uint32(channels)
	atomic.StoreUint64(&r.header.Head, 0)
	atomic.StoreUint64(&r.header.Tail, 0)
	atomic.StoreUint32(&r.header.Done, 0)
	// Magic last, so a reader never sees a half-initialized header.
	atomic.StoreUint64(&r.header.Magic, MagicValue)
	return r, nil
}

// Open maps an existing ring.
func Open(path string) (*Ring, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("open shm %s: %w", path, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fstat: %w", err)
	}
	if uint64(st.Size) <= HeaderSize {
		unix.Close(fd)
		return nil, fmt.Errorf("shm %s: too small for a ring header", path)
	}
	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	r := &Ring{fd: fd, data: data, size: uint64(st.Size) - HeaderSize}
	r.header = (*Header)(unsafe.Pointer(&data[0]))
	if atomic.LoadUint64(&r.header.Magic) != MagicValue {
		r.Close()
		return nil, fmt.Errorf("shm %s: invalid magic value", path)
	}
	if r.header.Version != Version || r.header.Size != r.size {
		r.Close()
		return nil, fmt.Errorf("shm %s: incompatible ring (version %d, size %d)", path, r.header.Version, r.header.Size)
	}
	return r, nil
}

func (r *Ring) Channels() int { return int(r.header.Channels) }

// Used is the number of bytes written but not yet read.
func (r *Ring) Used() uint64 {
	head := atomic.LoadUint64(&r.header.Head)
	tail := atomic.LoadUint64(&r.header.Tail)
	return (head + r.size - tail) % r.size
}

// Free is what Write can accept now. One byte stays unused so that a full
// ring is distinguishable from an empty one.
func (r *Ring) Free() uint64 { return r.size - 1 - r.Used() }

// Write copies all of p in or nothing. It returns ErrFull when the reader has
// not freed enough space yet.
func (r *Ring) Write(p []byte) (int, error) {
	n := uint64(len(p))
	if n > r.size-1 {
		return 0, fmt.Errorf("write of %d bytes larger than ring size", n)
	}
	if n > r.Free() {
		return 0, ErrFull
	}
	head := atomic.LoadUint64(&r.header.Head)
	dest := r.data[HeaderSize:]
	first := r.size - head
	if n <= first {
		copy(dest[head:], p)
	} else {
		copy(dest[head:], p[:first])
		copy(dest[0:], p[first:])
	}
	atomic.StoreUint64(&r.header.Head, (head+n)%r.size)
	return len(p), nil
}

// Read copies up to len(p) available bytes. It returns 0, nil when the ring
// is momentarily empty and io.EOF once it is empty and finished.
func (r *Ring) Read(p []byte) (int, error) {
	used := r.Used()
	if used == 0 {
		if r.Finished() {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := min(uint64(len(p)), used)
	tail := atomic.LoadUint64(&r.header.Tail)
	src := r.data[HeaderSize:]
	first := r.size - tail
	if n <= first {
		copy(p, src[tail:tail+n])
	} else {
		copy(p, src[tail:])
		copy(p[first:], src[:n-first])
	}
	atomic.StoreUint64(&r.header.Tail, (tail+n)%r.size)
	return int(n), nil
}

// Finish marks the stream complete; readers see io.EOF after draining.
func (r *Ring) Finish() { atomic.StoreUint32(&r.header.Done, 1) }

func (r *Ring) Finished() bool { return atomic.LoadUint32(&r.header.Done) == 1 }

func (r *Ring) Close() error {
	if r.data != nil {
		unix.Munmap(r.data)
		r.data = nil
	}
	if r.fd > 0 {
		unix.Close(r.fd)
		r.fd = 0
	}
	return nil
}

// Remove deletes the ring file; a missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
