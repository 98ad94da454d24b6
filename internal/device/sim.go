package device

import (
	"fmt"
	"slices"
	"sync"
)

// SimStats counts operations performed by a Sim.
type SimStats struct {
	Allocs           int
	Frees            int
	StreamsCreated   int
	StreamsDestroyed int
	PeerEnables      int
	Copies           int
	CopiedValues     int64
}

// CopyRecord describes one MemcpyPeerAsync call.
type CopyRecord struct {
	Dst    Buffer
	Src    Buffer
	Stream Stream
	N      int
}

type simDevice struct {
	budget  int64
	used    int64
	peers   map[int]bool
	enabled map[int]bool
}

// Sim is an in-memory multi-device driver. It is safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	devices map[int]*simDevice
	buffers map[uint64]*simBuffer
	streams map[uint64]Stream
	nextID  uint64
	stats   SimStats
	copies  []CopyRecord
}

type simBuffer struct {
	buf  Buffer
	data []float64
}

var (
	_ Driver   = (*Sim)(nil)
	_ HostView = (*Sim)(nil)
)

// NewSim creates a simulator for the devices described by tf.
func NewSim(tf *TopologyFile) *Sim {
	s := &Sim{
		devices: make(map[int]*simDevice, len(tf.Devices)),
		buffers: make(map[uint64]*simBuffer),
		streams: make(map[uint64]Stream),
	}
	for _, d := range tf.Devices {
		peers := make(map[int]bool, len(d.Peers))
		for _, p := range d.Peers {
			if p != d.ID {
				peers[p] = true
			}
		}
		s.devices[d.ID] = &simDevice{
			budget:  d.Budget(),
			peers:   peers,
			enabled: make(map[int]bool),
		}
	}
	return s
}

// DeviceIDs returns the simulated device ids in ascending order.
func (s *Sim) DeviceIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Contexts returns one context per simulated device, ordered by id.
func (s *Sim) Contexts() []Context {
	ids := s.DeviceIDs()
	ctxs := make([]Context, len(ids))
	for i, id := range ids {
		ctxs[i] = Context{Device: id}
	}
	return ctxs
}

func (s *Sim) device(id int) (*simDevice, error) {
	d, ok := s.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, id)
	}
	return d, nil
}

func (s *Sim) SetCurrent(ctx Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.device(ctx.Device)
	return err
}

func (s *Sim) CanAccessPeer(dev, peer int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.device(dev)
	if err != nil {
		return false, err
	}
	if _, err := s.device(peer); err != nil {
		return false, err
	}
	return d.peers[peer], nil
}

func (s *Sim) EnablePeerAccess(current, peer Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.device(current.Device)
	if err != nil {
		return err
	}
	if _, err := s.device(peer.Device); err != nil {
		return err
	}
	if !d.peers[peer.Device] {
		return fmt.Errorf("%w: %d -> %d", ErrPeerAccessUnsupported, current.Device, peer.Device)
	}
	if d.enabled[peer.Device] {
		return fmt.Errorf("%w: %d -> %d", ErrPeerAccessAlreadyEnabled, current.Device, peer.Device)
	}
	d.enabled[peer.Device] = true
	s.stats.PeerEnables++
	return nil
}

// PeerAccessEnabled reports whether dev has enabled direct access to peer.
func (s *Sim) PeerAccessEnabled(dev, peer int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[dev]
	return ok && d.enabled[peer]
}

func (s *Sim) Alloc(ctx Context, n int) (Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.device(ctx.Device)
	if err != nil {
		return Buffer{}, err
	}
	if n <= 0 {
		return Buffer{}, fmt.Errorf("%w: non-positive length %d", ErrInvalidBuffer, n)
	}
	size := int64(n) * 8
	if d.budget > 0 && d.used+size > d.budget {
		return Buffer{}, fmt.Errorf("%w: device %d needs %d bytes, %d of %d in use",
			ErrOutOfMemory, ctx.Device, size, d.used, d.budget)
	}
	d.used += size
	s.nextID++
	buf := Buffer{Device: ctx.Device, ID: s.nextID, Len: n}
	s.buffers[buf.ID] = &simBuffer{buf: buf, data: make([]float64, n)}
	s.stats.Allocs++
	return buf, nil
}

func (s *Sim) Free(buf Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb, ok := s.buffers[buf.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBuffer, buf.ID)
	}
	delete(s.buffers, buf.ID)
	if d, ok := s.devices[sb.buf.Device]; ok {
		d.used -= sb.buf.Bytes()
	}
	s.stats.Frees++
	return nil
}

func (s *Sim) CreateStream(ctx Context) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.device(ctx.Device); err != nil {
		return Stream{}, err
	}
	s.nextID++
	st := Stream{Device: ctx.Device, ID: s.nextID}
	s.streams[st.ID] = st
	s.stats.StreamsCreated++
	return st, nil
}

func (s *Sim) DestroyStream(st Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[st.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidStream, st.ID)
	}
	delete(s.streams, st.ID)
	s.stats.StreamsDestroyed++
	return nil
}

// MemcpyPeerAsync copies immediately; a simulated stream has no pending work.
func (s *Sim) MemcpyPeerAsync(dst Buffer, dstCtx Context, src Buffer, srcCtx Context, n int, st Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[st.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidStream, st.ID)
	}
	d, ok := s.buffers[dst.ID]
	if !ok || d.buf.Device != dstCtx.Device {
		return fmt.Errorf("%w: destination %d not on %s", ErrInvalidBuffer, dst.ID, dstCtx)
	}
	sb, ok := s.buffers[src.ID]
	if !ok || sb.buf.Device != srcCtx.Device {
		return fmt.Errorf("%w: source %d not on %s", ErrInvalidBuffer, src.ID, srcCtx)
	}
	if n > len(d.data) || n > len(sb.data) {
		return fmt.Errorf("%w: copy of %d values exceeds buffer", ErrInvalidBuffer, n)
	}
	copy(d.data[:n], sb.data[:n])
	s.stats.Copies++
	s.stats.CopiedValues += int64(n)
	s.copies = append(s.copies, CopyRecord{Dst: dst, Src: src, Stream: st, N: n})
	return nil
}

func (s *Sim) Synchronize(st Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[st.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidStream, st.ID)
	}
	return nil
}

func (s *Sim) Float64s(buf Buffer) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb, ok := s.buffers[buf.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBuffer, buf.ID)
	}
	return sb.data, nil
}

// Stats returns a snapshot of the operation counters.
func (s *Sim) Stats() SimStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Copies returns every copy issued so far, in order.
func (s *Sim) Copies() []CopyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.copies)
}

// MemoryInUse returns the bytes currently allocated on dev.
func (s *Sim) MemoryInUse(dev int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[dev]; ok {
		return d.used
	}
	return 0
}

// LiveBuffers returns the number of allocations not yet freed.
func (s *Sim) LiveBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}
