package correlation

import (
	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/task"
)

// ScratchPool lends auxiliary working memory to a backend. Buffers are keyed
// by worker so concurrent workers never share one.
type ScratchPool interface {
	Acquire(workerID, n int) []float64
	Release(workerID int, buf []float64)
}

// Invocation carries the per-worker resources for one backend call.
type Invocation struct {
	Stream   device.Stream
	Scratch  ScratchPool
	WorkerID int
}

// Backend computes correlation matrices and extracts their peaks.
// Implementations must be safe for concurrent use by different workers.
type Backend interface {
	// BindStream associates a worker's compute stream with the backend's
	// per-worker state. It is called once, before the worker's first task.
	BindStream(workerID int, s device.Stream) error

	// ComputeMatrix writes the correlation of tileFFT and neighborFFT into
	// matrix.
	ComputeMatrix(inv Invocation, tileFFT, neighborFFT, matrix device.Buffer) error

	// ExtractPeaks returns at most k peaks of a width x height matrix.
	ExtractPeaks(inv Invocation, matrix device.Buffer, width, height, k int) ([]task.Peak, error)
}
