// Package testutil provides shared fixtures for pipeline tests.
package testutil

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/tile"
)

// NewSim creates a simulator over ids where every pair of devices either
// has peer access or does not. memoryBytes of 0 means unlimited.
func NewSim(t *testing.T, ids []int, peerAccess bool, memoryBytes int64) *device.Sim {
	t.Helper()
	tf := device.UniformTopology(ids, 0, peerAccess)
	for i := range tf.Devices {
		tf.Devices[i].MemoryBytes = memoryBytes
	}
	return device.NewSim(tf)
}

// NewTile allocates a width x height tile on dev and fills its payload with
// a deterministic pattern derived from seed.
func NewTile(t *testing.T, sim *device.Sim, row, col, dev, width, height int, seed float64) *tile.Tile {
	t.Helper()
	buf, err := sim.Alloc(device.Context{Device: dev}, tile.PayloadLen(width, height))
	if err != nil {
		t.Fatalf("allocate tile r%dc%d on device %d: %v", row, col, dev, err)
	}
	data, err := sim.Float64s(buf)
	if err != nil {
		t.Fatalf("view tile r%dc%d: %v", row, col, err)
	}
	for i := range data {
		data[i] = math.Sin(seed + float64(i)*0.37)
	}
	t.Cleanup(func() { _ = sim.Free(buf) })

	return tile.New(tile.Spec{
		ID:     fmt.Sprintf("r%dc%d", row, col),
		Row:    row,
		Col:    col,
		Width:  width,
		Height: height,
		Device: dev,
		FFT:    buf,
	})
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for "+format, args...)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
