package device

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by drivers.
var (
	ErrOutOfMemory              = errors.New("out of device memory")
	ErrPeerAccessAlreadyEnabled = errors.New("peer access already enabled")
	ErrPeerAccessUnsupported    = errors.New("peer access not supported")
	ErrUnknownDevice            = errors.New("unknown device")
	ErrInvalidBuffer            = errors.New("invalid device buffer")
	ErrInvalidStream            = errors.New("invalid stream")
)

// Context is a compute context bound to one device.
type Context struct {
	Device int
}

// String returns "ctx:<device>".
func (c Context) String() string {
	return fmt.Sprintf("ctx:%d", c.Device)
}

// Buffer is a device-resident array of float64 values.
// The zero Buffer is invalid.
type Buffer struct {
	Device int
	ID     uint64
	Len    int
}

// Valid reports whether b refers to an allocation.
func (b Buffer) Valid() bool {
	return b.ID != 0
}

// Bytes returns the size of the buffer in bytes.
func (b Buffer) Bytes() int64 {
	return int64(b.Len) * 8
}

// Stream is an ordered queue of asynchronous device work.
// The zero Stream is invalid.
type Stream struct {
	Device int
	ID     uint64
}

// Valid reports whether s refers to a created stream.
func (s Stream) Valid() bool {
	return s.ID != 0
}

// Driver is the set of device operations used by alignment workers.
// Implementations must be safe for concurrent use.
type Driver interface {
	// SetCurrent binds ctx to the calling worker.
	SetCurrent(ctx Context) error

	// CanAccessPeer reports whether dev can read peer's memory directly.
	CanAccessPeer(dev, peer int) (bool, error)

	// EnablePeerAccess lets current read peer's memory directly.
	EnablePeerAccess(current, peer Context) error

	// Alloc reserves n float64 values on ctx's device.
	Alloc(ctx Context, n int) (Buffer, error)

	// Free releases a buffer returned by Alloc.
	Free(buf Buffer) error

	// CreateStream creates a stream on ctx's device.
	CreateStream(ctx Context) (Stream, error)

	// DestroyStream releases a stream returned by CreateStream.
	DestroyStream(s Stream) error

	// MemcpyPeerAsync copies n values from src (owned by srcCtx) into dst
	// (owned by dstCtx), ordered on s.
	MemcpyPeerAsync(dst Buffer, dstCtx Context, src Buffer, srcCtx Context, n int, s Stream) error

	// Synchronize blocks until all work queued on s has finished.
	Synchronize(s Stream) error
}

// HostView exposes device buffers as host slices. Only drivers that keep
// device memory addressable from the host (such as the simulator) implement it.
type HostView interface {
	// Float64s returns the live contents of buf.
	Float64s(buf Buffer) ([]float64, error)
}
