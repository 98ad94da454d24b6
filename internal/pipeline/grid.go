package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/task"
	"github.com/Iron-Ham/pciam/internal/tile"
)

// GridSpec describes a rectangular grid of equally sized tiles.
type GridSpec struct {
	Rows       int
	Cols       int
	TileWidth  int
	TileHeight int
}

// Validate checks that every dimension is positive.
func (g GridSpec) Validate() error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("grid must have at least one row and column (got: %dx%d)", g.Rows, g.Cols)
	}
	if g.TileWidth < 1 || g.TileHeight < 1 {
		return fmt.Errorf("tile dimensions must be positive (got: %dx%d)", g.TileWidth, g.TileHeight)
	}
	return nil
}

// Grid is a set of device-resident tiles indexed by row and column.
type Grid struct {
	Spec  GridSpec
	tiles [][]*tile.Tile
	drv   device.Driver
}

// At returns the tile at row r, column c, or nil if out of range.
func (g *Grid) At(r, c int) *tile.Tile {
	if r < 0 || r >= len(g.tiles) || c < 0 || c >= len(g.tiles[r]) {
		return nil
	}
	return g.tiles[r][c]
}

// Tiles returns every tile in row-major order.
func (g *Grid) Tiles() []*tile.Tile {
	out := make([]*tile.Tile, 0, g.Spec.Rows*g.Spec.Cols)
	for _, row := range g.tiles {
		out = append(out, row...)
	}
	return out
}

// Release frees every tile buffer.
func (g *Grid) Release() error {
	var errs []error
	for _, t := range g.Tiles() {
		if t == nil {
			continue
		}
		if err := g.drv.Free(t.FFT()); err != nil {
			errs = append(errs, fmt.Errorf("free %s: %w", t.ID(), err))
		}
	}
	g.tiles = nil
	return errors.Join(errs...)
}

// BuildGrid allocates one frequency-domain buffer per tile, assigning tiles
// to devices round-robin in row-major order. When drv also implements
// device.HostView the payloads are filled with a deterministic pattern.
func BuildGrid(drv device.Driver, spec GridSpec, devices []int) (*Grid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, errors.New("grid needs at least one device")
	}

	host, _ := drv.(device.HostView)
	payload := tile.PayloadLen(spec.TileWidth, spec.TileHeight)
	g := &Grid{Spec: spec, drv: drv, tiles: make([][]*tile.Tile, spec.Rows)}

	for r := 0; r < spec.Rows; r++ {
		g.tiles[r] = make([]*tile.Tile, spec.Cols)
		for c := 0; c < spec.Cols; c++ {
			dev := devices[(r*spec.Cols+c)%len(devices)]
			buf, err := drv.Alloc(device.Context{Device: dev}, payload)
			if err != nil {
				_ = g.Release()
				return nil, fmt.Errorf("allocate tile r%dc%d on device %d: %w", r, c, dev, err)
			}
			if host != nil {
				data, err := host.Float64s(buf)
				if err != nil {
					_ = drv.Free(buf)
					_ = g.Release()
					return nil, fmt.Errorf("fill tile r%dc%d: %w", r, c, err)
				}
				fillPayload(data, r, c)
			}
			g.tiles[r][c] = tile.New(tile.Spec{
				ID:     fmt.Sprintf("r%dc%d", r, c),
				Row:    r,
				Col:    c,
				Width:  spec.TileWidth,
				Height: spec.TileHeight,
				Device: dev,
				FFT:    buf,
			})
		}
	}
	return g, nil
}

// fillPayload writes interleaved complex values whose phase depends on the
// tile position, so neighboring tiles correlate at distinct offsets.
func fillPayload(data []float64, r, c int) {
	shift := float64(r*7 + c*3)
	for i := 0; i+1 < len(data); i += 2 {
		phase := float64(i/2) * 0.05 * (1 + shift)
		data[i] = math.Cos(phase)
		data[i+1] = math.Sin(phase)
	}
}

// Requests returns one NORTH request for every tile below the first row and
// one WEST request for every tile right of the first column.
func Requests(g *Grid) []*task.Task {
	var out []*task.Task
	for r := 0; r < g.Spec.Rows; r++ {
		for c := 0; c < g.Spec.Cols; c++ {
			t := g.At(r, c)
			if north := g.At(r-1, c); north != nil {
				out = append(out, task.NewAlignment(t, north, task.North))
			}
			if west := g.At(r, c-1); west != nil {
				out = append(out, task.NewAlignment(t, west, task.West))
			}
		}
	}
	return out
}
