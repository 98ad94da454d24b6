package worker

import (
	"sync/atomic"
)

// State is a worker lifecycle state.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Run holds the state shared by all workers of one pipeline run. A new Run
// must be created for every run; it is never reset.
type Run struct {
	id   string
	done atomic.Bool
}

// NewRun creates the shared state for a run.
func NewRun(id string) *Run {
	return &Run{id: id}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// MarkBookkeepingDone records that the bookkeeping stage will produce no
// further alignment work. The flag only moves from false to true.
func (r *Run) MarkBookkeepingDone() {
	r.done.Store(true)
}

// BookkeepingDone reports whether MarkBookkeepingDone has been called.
func (r *Run) BookkeepingDone() bool {
	return r.done.Load()
}

// Stats counts the work a worker has done.
type Stats struct {
	Aligned int64 // Alignment requests fully processed
	Staged  int64 // Staged neighbor transfers issued
}
