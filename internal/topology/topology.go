// Package topology records, for one worker's device, which other devices it
// can read directly and which must be reached through a staged copy.
package topology

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Iron-Ham/pciam/internal/device"
)

// Route says how a worker reaches one peer device's memory.
type Route struct {
	// Direct is true when peer access is enabled.
	Direct bool
	// Via is the peer's context, used as the source context of a staged copy.
	Via device.Context
}

// Topology maps peer device ids to routes. It is built once and read-only
// afterwards, so it needs no locking.
type Topology struct {
	routes map[int]Route
}

// Build queries peer access from self to every context in peers and enables
// direct access where the hardware allows it. Contexts on self's device are
// skipped. Enabling access that another worker already enabled is not an
// error.
func Build(drv device.Driver, self device.Context, peers []device.Context) (*Topology, error) {
	t := &Topology{
		routes: make(map[int]Route, len(peers)),
	}
	for _, peer := range peers {
		if peer.Device == self.Device {
			continue
		}
		ok, err := drv.CanAccessPeer(self.Device, peer.Device)
		if err != nil {
			return nil, fmt.Errorf("query peer access %d -> %d: %w", self.Device, peer.Device, err)
		}
		if !ok {
			t.routes[peer.Device] = Route{Via: peer}
			continue
		}
		if err := drv.EnablePeerAccess(self, peer); err != nil && !errors.Is(err, device.ErrPeerAccessAlreadyEnabled) {
			return nil, fmt.Errorf("enable peer access %d -> %d: %w", self.Device, peer.Device, err)
		}
		t.routes[peer.Device] = Route{Direct: true, Via: peer}
	}
	return t, nil
}

// Lookup returns the route to dev. The boolean is false for the worker's own
// device and for devices that were not part of the build.
func (t *Topology) Lookup(dev int) (Route, bool) {
	r, ok := t.routes[dev]
	return r, ok
}

// StagingContext returns the context to copy through when dev is reachable
// only by a staged copy.
func (t *Topology) StagingContext(dev int) (device.Context, bool) {
	r, ok := t.Lookup(dev)
	if !ok || r.Direct {
		return device.Context{}, false
	}
	return r.Via, true
}

// NonPeerDevices returns the ids that require staging, ascending.
func (t *Topology) NonPeerDevices() []int {
	var ids []int
	for id, r := range t.routes {
		if !r.Direct {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// DirectDevices returns the ids with peer access enabled, ascending.
func (t *Topology) DirectDevices() []int {
	var ids []int
	for id, r := range t.routes {
		if r.Direct {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
