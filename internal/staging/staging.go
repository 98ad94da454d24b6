// Package staging copies a neighbor's frequency-domain payload into a
// worker-local buffer when the neighbor lives on a device the worker cannot
// read directly.
package staging

import (
	"fmt"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/tile"
	"github.com/Iron-Ham/pciam/internal/topology"
)

// Stager owns no memory; the worker lends it the staging buffer and stream.
// The buffer is overwritten by every staged transfer, so its contents are only
// valid until the next call to Resolve.
type Stager struct {
	drv    device.Driver
	topo   *topology.Topology
	ctx    device.Context
	stream device.Stream
	buf    device.Buffer
	n      int
}

// New creates a Stager that copies n values into buf on stream.
func New(drv device.Driver, topo *topology.Topology, ctx device.Context, stream device.Stream, buf device.Buffer, n int) *Stager {
	return &Stager{
		drv:    drv,
		topo:   topo,
		ctx:    ctx,
		stream: stream,
		buf:    buf,
		n:      n,
	}
}

// NeedsStaging reports whether neighbor must be copied before correlating it
// with t.
func (s *Stager) NeedsStaging(t, neighbor *tile.Tile) bool {
	if neighbor.Device() == t.Device() {
		return false
	}
	_, staged := s.topo.StagingContext(neighbor.Device())
	return staged
}

// Resolve returns the buffer the correlation must read for neighbor. When the
// neighbor is on a non-peer device its payload is copied into the staging
// buffer first and the staging buffer is returned; otherwise the neighbor's
// own buffer is returned and nothing is copied.
func (s *Stager) Resolve(t, neighbor *tile.Tile) (device.Buffer, bool, error) {
	if !s.NeedsStaging(t, neighbor) {
		return neighbor.FFT(), false, nil
	}
	via, _ := s.topo.StagingContext(neighbor.Device())
	if err := s.drv.MemcpyPeerAsync(s.buf, s.ctx, neighbor.FFT(), via, s.n, s.stream); err != nil {
		return device.Buffer{}, false, fmt.Errorf("stage %s from device %d: %w", neighbor.ID(), neighbor.Device(), err)
	}
	return s.buf, true, nil
}
