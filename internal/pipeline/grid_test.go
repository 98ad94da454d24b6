package pipeline

import (
	"errors"
	"testing"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/task"
	"github.com/Iron-Ham/pciam/internal/testutil"
	"github.com/Iron-Ham/pciam/internal/tile"
)

func TestBuildGridAssignsDevicesRoundRobin(t *testing.T) {
	sim := testutil.NewSim(t, []int{0, 1, 2}, false, 0)
	g := newTestGrid(t, sim, 2, 4, []int{0, 1, 2})

	want := [][]int{{0, 1, 2, 0}, {1, 2, 0, 1}}
	for r, row := range want {
		for c, dev := range row {
			tl := g.At(r, c)
			if tl.Device() != dev {
				t.Errorf("tile r%dc%d on device %d, want %d", r, c, tl.Device(), dev)
			}
			if tl.FFT().Len != tile.PayloadLen(8, 8) || tl.FFT().Device != dev {
				t.Errorf("tile r%dc%d buffer = %+v", r, c, tl.FFT())
			}
		}
	}
	if g.At(2, 0) != nil || g.At(0, -1) != nil {
		t.Error("At() out of range should return nil")
	}
	if len(g.Tiles()) != 8 {
		t.Errorf("Tiles() = %d, want 8", len(g.Tiles()))
	}
}

func TestBuildGridPayloadsDiffer(t *testing.T) {
	sim := testutil.NewSim(t, []int{0}, false, 0)
	g := newTestGrid(t, sim, 1, 2, []int{0})

	a, _ := sim.Float64s(g.At(0, 0).FFT())
	b, _ := sim.Float64s(g.At(0, 1).FFT())
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("neighboring tiles should have different payloads")
	}
}

func TestBuildGridErrors(t *testing.T) {
	sim := testutil.NewSim(t, []int{0}, false, 0)

	tests := []struct {
		name    string
		spec    GridSpec
		devices []int
	}{
		{"no rows", GridSpec{Rows: 0, Cols: 2, TileWidth: 8, TileHeight: 8}, []int{0}},
		{"zero width", GridSpec{Rows: 1, Cols: 2, TileWidth: 0, TileHeight: 8}, []int{0}},
		{"no devices", GridSpec{Rows: 1, Cols: 1, TileWidth: 8, TileHeight: 8}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildGrid(sim, tt.spec, tt.devices); err == nil {
				t.Error("BuildGrid() should fail")
			}
		})
	}
}

func TestBuildGridOutOfMemoryReleasesTiles(t *testing.T) {
	// Room for two 8x8 payloads of 80 values each.
	sim := testutil.NewSim(t, []int{0}, false, 2*80*8)

	_, err := BuildGrid(sim, GridSpec{Rows: 2, Cols: 2, TileWidth: 8, TileHeight: 8}, []int{0})
	if !errors.Is(err, device.ErrOutOfMemory) {
		t.Fatalf("BuildGrid() error = %v, want ErrOutOfMemory", err)
	}
	if sim.LiveBuffers() != 0 {
		t.Errorf("live buffers = %d after failed build", sim.LiveBuffers())
	}
}

func TestRequests(t *testing.T) {
	sim := testutil.NewSim(t, []int{0}, false, 0)
	g := newTestGrid(t, sim, 2, 3, []int{0})

	reqs := Requests(g)
	if len(reqs) != 2*2+3*1 {
		t.Fatalf("requests = %d, want 7", len(reqs))
	}

	counts := map[task.Direction]int{}
	for _, r := range reqs {
		if r.Kind != task.KindAlignment {
			t.Errorf("request kind = %v", r.Kind)
		}
		counts[r.Direction]++
		switch r.Direction {
		case task.North:
			if r.Neighbor.Row() != r.Tile.Row()-1 || r.Neighbor.Col() != r.Tile.Col() {
				t.Errorf("%s: north neighbor is not above", r)
			}
		case task.West:
			if r.Neighbor.Col() != r.Tile.Col()-1 || r.Neighbor.Row() != r.Tile.Row() {
				t.Errorf("%s: west neighbor is not to the left", r)
			}
		}
	}
	if counts[task.North] != 3 || counts[task.West] != 4 {
		t.Errorf("directions = %v, want 3 north and 4 west", counts)
	}
}
