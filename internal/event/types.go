package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "worker.state_changed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypePoolStarted        = "pool.started"
	TypePoolStopped        = "pool.stopped"
	TypeWorkerStateChanged = "worker.state_changed"
	TypeStagedTransfer     = "transfer.staged"
	TypeAlignmentCompleted = "alignment.completed"
	TypeSentinelPosted     = "sentinel.posted"
	TypeResourceExhausted  = "resource.exhausted"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Pool Lifecycle Events
// -----------------------------------------------------------------------------

// PoolStartedEvent is emitted once every worker of a pool has been launched.
type PoolStartedEvent struct {
	baseEvent
	RunID   string
	Workers int
	Devices []int
}

// NewPoolStartedEvent creates a PoolStartedEvent.
func NewPoolStartedEvent(runID string, workers int, devices []int) PoolStartedEvent {
	return PoolStartedEvent{
		baseEvent: newBaseEvent(TypePoolStarted),
		RunID:     runID,
		Workers:   workers,
		Devices:   devices,
	}
}

// PoolStoppedEvent is emitted after all workers have terminated.
type PoolStoppedEvent struct {
	baseEvent
	RunID     string
	Cancelled bool
	Err       error // First worker error, if any
}

// NewPoolStoppedEvent creates a PoolStoppedEvent.
func NewPoolStoppedEvent(runID string, cancelled bool, err error) PoolStoppedEvent {
	return PoolStoppedEvent{
		baseEvent: newBaseEvent(TypePoolStopped),
		RunID:     runID,
		Cancelled: cancelled,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Worker Events
// -----------------------------------------------------------------------------

// WorkerStateChangedEvent is emitted on every worker lifecycle transition.
type WorkerStateChangedEvent struct {
	baseEvent
	WorkerID int
	DeviceID int
	From     string
	To       string
}

// NewWorkerStateChangedEvent creates a WorkerStateChangedEvent.
func NewWorkerStateChangedEvent(workerID, deviceID int, from, to string) WorkerStateChangedEvent {
	return WorkerStateChangedEvent{
		baseEvent: newBaseEvent(TypeWorkerStateChanged),
		WorkerID:  workerID,
		DeviceID:  deviceID,
		From:      from,
		To:        to,
	}
}

// StagedTransferEvent is emitted when a neighbor's transform is copied into
// a worker's staging buffer because its device is not a direct peer.
type StagedTransferEvent struct {
	baseEvent
	WorkerID   int
	TileID     string
	FromDevice int
	ToDevice   int
	ViaDevice  int
}

// NewStagedTransferEvent creates a StagedTransferEvent.
func NewStagedTransferEvent(workerID int, tileID string, fromDevice, toDevice, viaDevice int) StagedTransferEvent {
	return StagedTransferEvent{
		baseEvent:  newBaseEvent(TypeStagedTransfer),
		WorkerID:   workerID,
		TileID:     tileID,
		FromDevice: fromDevice,
		ToDevice:   toDevice,
		ViaDevice:  viaDevice,
	}
}

// AlignmentCompletedEvent is emitted after a worker has forwarded the peaks
// of one tile pair.
type AlignmentCompletedEvent struct {
	baseEvent
	WorkerID   int
	TileID     string
	NeighborID string
	Direction  string
	Peaks      int
}

// NewAlignmentCompletedEvent creates an AlignmentCompletedEvent.
func NewAlignmentCompletedEvent(workerID int, tileID, neighborID, direction string, peaks int) AlignmentCompletedEvent {
	return AlignmentCompletedEvent{
		baseEvent:  newBaseEvent(TypeAlignmentCompleted),
		WorkerID:   workerID,
		TileID:     tileID,
		NeighborID: neighborID,
		Direction:  direction,
		Peaks:      peaks,
	}
}

// SentinelPostedEvent is emitted when a sentinel is placed on a queue.
type SentinelPostedEvent struct {
	baseEvent
	WorkerID int // -1 when posted by the pool rather than a worker
	Queue    string
}

// NewSentinelPostedEvent creates a SentinelPostedEvent.
func NewSentinelPostedEvent(workerID int, queue string) SentinelPostedEvent {
	return SentinelPostedEvent{
		baseEvent: newBaseEvent(TypeSentinelPosted),
		WorkerID:  workerID,
		Queue:     queue,
	}
}

// ResourceExhaustedEvent is emitted when a worker cannot allocate its
// device resources.
type ResourceExhaustedEvent struct {
	baseEvent
	WorkerID int
	DeviceID int
	Err      error
}

// NewResourceExhaustedEvent creates a ResourceExhaustedEvent.
func NewResourceExhaustedEvent(workerID, deviceID int, err error) ResourceExhaustedEvent {
	return ResourceExhaustedEvent{
		baseEvent: newBaseEvent(TypeResourceExhausted),
		WorkerID:  workerID,
		DeviceID:  deviceID,
		Err:       err,
	}
}
