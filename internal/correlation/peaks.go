package correlation

import (
	"cmp"
	"slices"

	"github.com/Iron-Ham/pciam/internal/task"
)

// TopPeaks returns up to k local maxima of a row-major width x height matrix,
// strongest first. An element is a local maximum when it is strictly greater
// than every in-bounds neighbor in its 8-neighborhood. Ties in value are
// ordered by row, then column. Fewer than k peaks are returned when the matrix
// has fewer local maxima.
func TopPeaks(matrix []float64, width, height, k int) []task.Peak {
	if k <= 0 || width <= 0 || height <= 0 || len(matrix) < width*height {
		return nil
	}

	var peaks []task.Peak
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if isLocalMax(matrix, width, height, x, y) {
				peaks = append(peaks, task.Peak{X: x, Y: y, Value: matrix[y*width+x]})
			}
		}
	}

	slices.SortFunc(peaks, func(a, b task.Peak) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})

	if len(peaks) > k {
		peaks = peaks[:k]
	}
	return peaks
}

func isLocalMax(m []float64, width, height, x, y int) bool {
	v := m[y*width+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= width || ny >= height {
				continue
			}
			if m[ny*width+nx] >= v {
				return false
			}
		}
	}
	return true
}
