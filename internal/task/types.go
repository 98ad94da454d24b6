package task

import (
	"fmt"

	"github.com/Iron-Ham/pciam/internal/tile"
)

// Kind identifies the variant carried by a Task.
type Kind int

const (
	// KindAlignment asks a worker to correlate a tile with one neighbor.
	KindAlignment Kind = iota

	// KindBookkeepingCheck reports a finished alignment to the bookkeeping stage.
	KindBookkeepingCheck

	// KindCCF hands peak indices to the CCF finalization stage.
	KindCCF

	// KindBookkeepingDone signals that the bookkeeping stage produces no more work.
	KindBookkeepingDone

	// KindCancel aborts the run.
	KindCancel

	// KindSentinel wakes and terminates the next consumer of a shared queue.
	KindSentinel
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAlignment:
		return "alignment"
	case KindBookkeepingCheck:
		return "bookkeeping_check"
	case KindCCF:
		return "ccf"
	case KindBookkeepingDone:
		return "bookkeeping_done"
	case KindCancel:
		return "cancel"
	case KindSentinel:
		return "sentinel"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsControl reports whether the kind is a control signal rather than work.
func (k Kind) IsControl() bool {
	return k == KindCancel || k == KindSentinel || k == KindBookkeepingDone
}

// Direction is the side of a tile its neighbor sits on.
type Direction int

const (
	North Direction = iota
	West
)

// String returns "north" or "west".
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case West:
		return "west"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Peak is one candidate offset extracted from a correlation matrix.
// X is the column and Y the row of the matrix element.
type Peak struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Value float64 `json:"value"`
}

// Task is one unit of pipeline work or one control signal.
// Tasks are treated as immutable once enqueued.
type Task struct {
	Kind      Kind
	Tile      *tile.Tile
	Neighbor  *tile.Tile
	Direction Direction

	// Peaks is set on derived tasks.
	Peaks []Peak

	// OriginDevice and OriginWorker identify the worker that produced a CCF task.
	OriginDevice int
	OriginWorker int
}

// NewAlignment creates an alignment request pairing tile with its neighbor.
func NewAlignment(t, neighbor *tile.Tile, dir Direction) *Task {
	return &Task{Kind: KindAlignment, Tile: t, Neighbor: neighbor, Direction: dir}
}

// NewBookkeepingCheck creates the bookkeeping task derived from an alignment.
func NewBookkeepingCheck(t, neighbor *tile.Tile, dir Direction, peaks []Peak) *Task {
	return &Task{Kind: KindBookkeepingCheck, Tile: t, Neighbor: neighbor, Direction: dir, Peaks: peaks}
}

// NewCCF creates the CCF task derived from an alignment.
func NewCCF(t, neighbor *tile.Tile, dir Direction, peaks []Peak, originDevice, originWorker int) *Task {
	return &Task{
		Kind:         KindCCF,
		Tile:         t,
		Neighbor:     neighbor,
		Direction:    dir,
		Peaks:        peaks,
		OriginDevice: originDevice,
		OriginWorker: originWorker,
	}
}

// NewBookkeepingDone creates the upstream-finished signal.
func NewBookkeepingDone() *Task { return &Task{Kind: KindBookkeepingDone} }

// NewCancel creates a cancellation signal.
func NewCancel() *Task { return &Task{Kind: KindCancel} }

// NewSentinel creates a drain token.
func NewSentinel() *Task { return &Task{Kind: KindSentinel} }

// String renders the task for logs.
func (t *Task) String() string {
	if t.Tile == nil || t.Neighbor == nil {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%s<-%s %s)", t.Kind, t.Tile.ID(), t.Neighbor.ID(), t.Direction)
}
