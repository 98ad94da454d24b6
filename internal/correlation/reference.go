package correlation

import (
	"fmt"
	"math"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/task"
)

// Reference is a host backend over a driver whose memory is host-addressable.
type Reference struct {
	host device.HostView
}

var _ Backend = (*Reference)(nil)

// NewReference creates a Reference backend reading buffers through host.
func NewReference(host device.HostView) *Reference {
	return &Reference{host: host}
}

// BindStream is a no-op: host computation completes before it returns.
func (r *Reference) BindStream(int, device.Stream) error {
	return nil
}

// ComputeMatrix normalises the cross-power spectrum of the two interleaved
// complex payloads and projects its real part onto the matrix.
func (r *Reference) ComputeMatrix(inv Invocation, tileFFT, neighborFFT, matrix device.Buffer) error {
	a, err := r.host.Float64s(tileFFT)
	if err != nil {
		return fmt.Errorf("read tile payload: %w", err)
	}
	b, err := r.host.Float64s(neighborFFT)
	if err != nil {
		return fmt.Errorf("read neighbor payload: %w", err)
	}
	m, err := r.host.Float64s(matrix)
	if err != nil {
		return fmt.Errorf("read matrix: %w", err)
	}

	n := min(len(a), len(b)) &^ 1
	if n == 0 {
		clear(m)
		return nil
	}

	cross := inv.Scratch.Acquire(inv.WorkerID, n)
	defer inv.Scratch.Release(inv.WorkerID, cross)

	for i := 0; i < n; i += 2 {
		ar, ai := a[i], a[i+1]
		br, bi := b[i], b[i+1]
		re := ar*br + ai*bi
		im := ai*br - ar*bi
		if mag := math.Hypot(re, im); mag > 0 {
			re /= mag
			im /= mag
		}
		cross[i], cross[i+1] = re, im
	}

	elems := n / 2
	for i := range m {
		m[i] = cross[2*(i%elems)]
	}
	return nil
}

// ExtractPeaks runs TopPeaks over the host copy of matrix.
func (r *Reference) ExtractPeaks(_ Invocation, matrix device.Buffer, width, height, k int) ([]task.Peak, error) {
	m, err := r.host.Float64s(matrix)
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	if len(m) < width*height {
		return nil, fmt.Errorf("%w: matrix holds %d values, need %dx%d", device.ErrInvalidBuffer, len(m), width, height)
	}
	return TopPeaks(m, width, height, k), nil
}
