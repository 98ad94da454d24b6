// Package tile describes image tiles whose frequency-domain representation
// lives on a GPU.
//
// A [Tile] is immutable: its device affinity and device-resident buffer are
// fixed at construction, so any worker may read them without locking once the
// tile has been enqueued.
package tile

import "github.com/Iron-Ham/pciam/internal/device"

// Tile is a handle to one image tile and its device-resident FFT.
type Tile struct {
	id     string
	row    int
	col    int
	width  int
	height int
	device int
	fft    device.Buffer
}

// Spec holds the construction parameters for a Tile.
type Spec struct {
	ID     string
	Row    int
	Col    int
	Width  int
	Height int
	Device int
	FFT    device.Buffer
}

// New creates a Tile from spec.
func New(spec Spec) *Tile {
	return &Tile{
		id:     spec.ID,
		row:    spec.Row,
		col:    spec.Col,
		width:  spec.Width,
		height: spec.Height,
		device: spec.Device,
		fft:    spec.FFT,
	}
}

func (t *Tile) ID() string         { return t.id }
func (t *Tile) Row() int           { return t.row }
func (t *Tile) Col() int           { return t.col }
func (t *Tile) Width() int         { return t.width }
func (t *Tile) Height() int        { return t.height }
func (t *Tile) Device() int        { return t.device }
func (t *Tile) FFT() device.Buffer { return t.fft }

// FFTSize returns the number of complex elements in the real-to-complex
// transform of a width x height tile.
func FFTSize(width, height int) int {
	return (width/2 + 1) * height
}

// PayloadLen returns the number of float64 values needed to hold the
// interleaved complex FFT of a width x height tile.
func PayloadLen(width, height int) int {
	return FFTSize(width, height) * 2
}

// MatrixLen returns the number of float64 values in a correlation matrix for
// a width x height tile.
func MatrixLen(width, height int) int {
	return width * height
}
