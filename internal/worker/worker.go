package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Iron-Ham/pciam/internal/correlation"
	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/event"
	"github.com/Iron-Ham/pciam/internal/fatal"
	"github.com/Iron-Ham/pciam/internal/logging"
	"github.com/Iron-Ham/pciam/internal/staging"
	"github.com/Iron-Ham/pciam/internal/task"
	"github.com/Iron-Ham/pciam/internal/taskqueue"
	"github.com/Iron-Ham/pciam/internal/tile"
	"github.com/Iron-Ham/pciam/internal/topology"
)

// ErrMalformedTask is returned by Run when the inbound queue delivers a task
// a worker cannot process, such as a derived task or a request without tiles.
var ErrMalformedTask = errors.New("malformed task")

// Config holds everything a Worker needs. All fields except Escalator,
// Logger and Bus are required.
type Config struct {
	Inbound     *taskqueue.Queue
	Bookkeeping *taskqueue.Queue
	CCF         *taskqueue.Queue

	// Memory lends scratch memory to the correlation backend.
	Memory correlation.ScratchPool

	// InitTile sizes the staging and correlation-matrix buffers.
	InitTile *tile.Tile

	DeviceID int
	WorkerID int
	Context  device.Context
	// Peers lists the contexts of every participating device. The worker's
	// own context may be included; it is skipped.
	Peers []device.Context

	Driver  device.Driver
	Backend correlation.Backend
	Run     *Run

	// NumPeaks is the maximum number of peaks forwarded per alignment.
	NumPeaks int

	Escalator *fatal.Escalator
	Logger    *logging.Logger
	Bus       *event.Bus
}

func (c Config) validate() error {
	switch {
	case c.Inbound == nil || c.Bookkeeping == nil || c.CCF == nil:
		return errors.New("worker requires inbound, bookkeeping and ccf queues")
	case c.Memory == nil:
		return errors.New("worker requires a scratch memory pool")
	case c.InitTile == nil:
		return errors.New("worker requires an initial tile")
	case c.Driver == nil:
		return errors.New("worker requires a device driver")
	case c.Backend == nil:
		return errors.New("worker requires a correlation backend")
	case c.Run == nil:
		return errors.New("worker requires a run")
	case c.NumPeaks < 1:
		return fmt.Errorf("num peaks must be at least 1 (got: %d)", c.NumPeaks)
	case c.Context.Device != c.DeviceID:
		return fmt.Errorf("context is for device %d, worker is for device %d", c.Context.Device, c.DeviceID)
	}
	return nil
}

// Worker is a per-device alignment worker. Run must be called at most once.
type Worker struct {
	cfg       Config
	logger    *logging.Logger
	escalator *fatal.Escalator

	state   atomic.Int32
	aligned atomic.Int64
	staged  atomic.Int64

	// cancelled is only touched by the goroutine executing Run.
	cancelled bool
}

// New validates cfg and creates a Worker in the INITIALIZING state.
func New(cfg Config) (*Worker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	esc := cfg.Escalator
	if esc == nil {
		esc = fatal.New(logger)
	}
	return &Worker{
		cfg:       cfg,
		logger:    logger.WithWorker(cfg.WorkerID).WithDevice(cfg.DeviceID),
		escalator: esc,
	}, nil
}

// ID returns the worker id.
func (w *Worker) ID() int {
	return w.cfg.WorkerID
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Aligned: w.aligned.Load(),
		Staged:  w.staged.Load(),
	}
}

// Cancel asks the pool to stop by enqueueing a Cancel task. It is safe to
// call from any goroutine and any number of times.
func (w *Worker) Cancel() {
	w.cfg.Inbound.Put(task.NewCancel())
}

// resources are the device objects owned by a running worker.
type resources struct {
	staging device.Buffer
	matrix  device.Buffer
	stream  device.Stream
	topo    *topology.Topology
	stager  *staging.Stager

	// release holds cleanup steps in acquisition order.
	release []func() error
}

func (r *resources) push(fn func() error) {
	r.release = append(r.release, fn)
}

// close runs every cleanup step in reverse order and joins their errors.
func (r *resources) close() error {
	var errs []error
	for i := len(r.release) - 1; i >= 0; i-- {
		if err := r.release[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.release = nil
	return errors.Join(errs...)
}

// Run executes the worker until it is cancelled, drained, interrupted by
// ctx or fails. Cancellation and interruption are not errors. Every exit
// path posts one Sentinel to the inbound queue and releases all device
// resources the worker allocated.
func (w *Worker) Run(ctx context.Context) error {
	res, err := w.init()
	if err != nil {
		if closeErr := res.close(); closeErr != nil {
			w.logger.Warn("failed to release partially initialized resources", "error", closeErr.Error())
		}
		if errors.Is(err, device.ErrOutOfMemory) {
			w.escalator.Escalate(w.cfg.WorkerID, w.cfg.DeviceID, err)
		}
		w.postSentinel()
		w.setState(StateTerminated)
		return fmt.Errorf("worker %d init: %w", w.cfg.WorkerID, err)
	}

	w.setState(StateRunning)
	w.logger.Info("alignment worker running",
		"direct_peers", res.topo.DirectDevices(),
		"staged_peers", res.topo.NonPeerDevices(),
	)

	loopErr := w.loop(ctx, res)

	w.setState(StateDraining)
	w.postSentinel()

	if syncErr := w.cfg.Driver.Synchronize(res.stream); syncErr != nil {
		w.logger.Warn("failed to synchronize stream before release", "error", syncErr.Error())
	}
	releaseErr := res.close()
	if releaseErr != nil {
		w.logger.Error("failed to release device resources", "error", releaseErr.Error())
	}
	w.setState(StateTerminated)

	stats := w.Stats()
	w.logger.Info("alignment worker done", "aligned", stats.Aligned, "staged", stats.Staged)
	return errors.Join(loopErr, releaseErr)
}

// init binds the device and acquires the worker's resources. On error the
// returned resources hold whatever was acquired so the caller can release it.
func (w *Worker) init() (*resources, error) {
	res := &resources{}
	drv := w.cfg.Driver
	ctx := w.cfg.Context

	if err := drv.SetCurrent(ctx); err != nil {
		return res, fmt.Errorf("bind %s: %w", ctx, err)
	}

	initTile := w.cfg.InitTile
	payload := tile.PayloadLen(initTile.Width(), initTile.Height())

	stagingBuf, err := drv.Alloc(ctx, payload)
	if err != nil {
		return res, fmt.Errorf("allocate staging buffer: %w", err)
	}
	res.staging = stagingBuf
	res.push(func() error { return drv.Free(stagingBuf) })

	matrix, err := drv.Alloc(ctx, tile.MatrixLen(initTile.Width(), initTile.Height()))
	if err != nil {
		return res, fmt.Errorf("allocate correlation matrix: %w", err)
	}
	res.matrix = matrix
	res.push(func() error { return drv.Free(matrix) })

	stream, err := drv.CreateStream(ctx)
	if err != nil {
		return res, fmt.Errorf("create stream: %w", err)
	}
	res.stream = stream
	res.push(func() error { return drv.DestroyStream(stream) })

	if err := w.cfg.Backend.BindStream(w.cfg.WorkerID, stream); err != nil {
		return res, fmt.Errorf("bind stream to backend: %w", err)
	}

	topo, err := topology.Build(drv, ctx, w.cfg.Peers)
	if err != nil {
		return res, fmt.Errorf("build peer topology: %w", err)
	}
	res.topo = topo
	res.stager = staging.New(drv, topo, ctx, stream, res.staging, payload)
	return res, nil
}

func (w *Worker) loop(ctx context.Context, res *resources) error {
	inbound := w.cfg.Inbound
	run := w.cfg.Run

	for !w.cancelled && (!run.BookkeepingDone() || inbound.Len() > 0) {
		t, err := inbound.Take(ctx)
		if err != nil {
			if errors.Is(err, taskqueue.ErrInterrupted) {
				w.logger.Warn("alignment worker interrupted", "error", err.Error())
				return nil
			}
			return err
		}
		w.logger.Debug("task acquired", "task", t.String(), "queue_depth", inbound.Len())

		switch t.Kind {
		case task.KindAlignment:
			if err := w.align(t, res); err != nil {
				return err
			}
		case task.KindBookkeepingDone:
			run.MarkBookkeepingDone()
		case task.KindCancel:
			w.cancelled = true
		case task.KindSentinel:
			return nil
		default:
			w.logger.Error("unexpected task on inbound queue", "task", t.String())
			return fmt.Errorf("%w: %s on inbound queue", ErrMalformedTask, t.Kind)
		}
	}
	return nil
}

// align correlates one tile pair and forwards the derived tasks, bookkeeping
// first.
func (w *Worker) align(t *task.Task, res *resources) error {
	if t.Tile == nil || t.Neighbor == nil {
		return fmt.Errorf("%w: %s without tile pair", ErrMalformedTask, t.Kind)
	}

	src, staged, err := res.stager.Resolve(t.Tile, t.Neighbor)
	if err != nil {
		return err
	}
	if staged {
		w.staged.Add(1)
		via, _ := res.topo.StagingContext(t.Neighbor.Device())
		w.publish(event.NewStagedTransferEvent(w.cfg.WorkerID, t.Neighbor.ID(), t.Neighbor.Device(), w.cfg.DeviceID, via.Device))
	}

	inv := correlation.Invocation{
		Stream:   res.stream,
		Scratch:  w.cfg.Memory,
		WorkerID: w.cfg.WorkerID,
	}
	if err := w.cfg.Backend.ComputeMatrix(inv, t.Tile.FFT(), src, res.matrix); err != nil {
		return w.computeFailed(t, err)
	}
	peaks, err := w.cfg.Backend.ExtractPeaks(inv, res.matrix, t.Tile.Width(), t.Tile.Height(), w.cfg.NumPeaks)
	if err != nil {
		return w.computeFailed(t, err)
	}
	if len(peaks) > w.cfg.NumPeaks {
		peaks = peaks[:w.cfg.NumPeaks]
	}

	w.cfg.Bookkeeping.Put(task.NewBookkeepingCheck(t.Tile, t.Neighbor, t.Direction, peaks))
	w.cfg.CCF.Put(task.NewCCF(t.Tile, t.Neighbor, t.Direction, peaks, w.cfg.DeviceID, w.cfg.WorkerID))

	w.aligned.Add(1)
	w.publish(event.NewAlignmentCompletedEvent(w.cfg.WorkerID, t.Tile.ID(), t.Neighbor.ID(), t.Direction.String(), len(peaks)))
	return nil
}

func (w *Worker) computeFailed(t *task.Task, err error) error {
	if errors.Is(err, device.ErrOutOfMemory) {
		w.escalator.Escalate(w.cfg.WorkerID, w.cfg.DeviceID, err)
	}
	return fmt.Errorf("correlate %s: %w", t, err)
}

func (w *Worker) postSentinel() {
	w.cfg.Inbound.Put(task.NewSentinel())
	w.logger.Debug("sentinel posted", "queue", w.cfg.Inbound.Name())
	w.publish(event.NewSentinelPostedEvent(w.cfg.WorkerID, w.cfg.Inbound.Name()))
}

func (w *Worker) setState(s State) {
	prev := State(w.state.Swap(int32(s)))
	if prev == s {
		return
	}
	w.logger.Debug("worker state changed", "from", prev.String(), "to", s.String())
	w.publish(event.NewWorkerStateChangedEvent(w.cfg.WorkerID, w.cfg.DeviceID, prev.String(), s.String()))
}

func (w *Worker) publish(e event.Event) {
	if w.cfg.Bus != nil {
		w.cfg.Bus.Publish(e)
	}
}
