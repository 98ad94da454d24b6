package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/pciam/internal/correlation"
	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/event"
	"github.com/Iron-Ham/pciam/internal/fatal"
	"github.com/Iron-Ham/pciam/internal/logging"
	"github.com/Iron-Ham/pciam/internal/memory"
	"github.com/Iron-Ham/pciam/internal/task"
	"github.com/Iron-Ham/pciam/internal/taskqueue"
	"github.com/Iron-Ham/pciam/internal/tile"
	"github.com/Iron-Ham/pciam/internal/worker"
)

// Queue names, used in logs, events and queue statistics.
const (
	InboundQueueName     = "alignment"
	BookkeepingQueueName = "bookkeeping"
	CCFQueueName         = "ccf"
)

// Options configures a Pool.
type Options struct {
	Driver  device.Driver
	Backend correlation.Backend

	// Devices lists the device ids to run a worker on, one worker each.
	Devices []int

	// InitTile sizes every worker's buffers.
	InitTile *tile.Tile

	// NumPeaks is the number of peaks forwarded per alignment.
	NumPeaks int

	// RunID tags logs and events. Defaults to "run".
	RunID string

	// Memory is the scratch pool lent to the backend. A new pool is created
	// when nil.
	Memory *memory.Pool

	// Escalator handles fatal device errors. When nil one is created that
	// logs through Logger. The pool attaches itself as the canceler.
	Escalator *fatal.Escalator

	Logger *logging.Logger
	Bus    *event.Bus
}

func (o Options) validate() error {
	if o.Driver == nil {
		return errors.New("pipeline: Driver is required")
	}
	if o.Backend == nil {
		return errors.New("pipeline: Backend is required")
	}
	if len(o.Devices) == 0 {
		return errors.New("pipeline: at least one device is required")
	}
	seen := make(map[int]bool, len(o.Devices))
	for _, id := range o.Devices {
		if seen[id] {
			return fmt.Errorf("pipeline: device %d listed twice", id)
		}
		seen[id] = true
	}
	if o.InitTile == nil {
		return errors.New("pipeline: InitTile is required")
	}
	if o.NumPeaks < 1 {
		return fmt.Errorf("pipeline: NumPeaks must be at least 1 (got: %d)", o.NumPeaks)
	}
	return nil
}

// Pool is a set of alignment workers sharing one inbound queue.
type Pool struct {
	opts   Options
	logger *logging.Logger

	run         *worker.Run
	inbound     *taskqueue.Queue
	bookkeeping *taskqueue.Queue
	ccf         *taskqueue.Queue
	memory      *memory.Pool
	escalator   *fatal.Escalator
	workers     []*worker.Worker

	cancelled  atomic.Bool
	cancelOnce sync.Once

	mu      sync.Mutex
	started bool
	group   *pool.ErrorPool

	waitOnce sync.Once
	waitErr  error
}

// New creates a Pool and its workers. Workers are not started until Start.
func New(opts Options) (*Pool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = "run"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithRun(opts.RunID)
	if opts.Memory == nil {
		opts.Memory = memory.NewPool()
	}
	esc := opts.Escalator
	if esc == nil {
		esc = fatal.New(logger, fatal.WithBus(opts.Bus))
	}

	p := &Pool{
		opts:        opts,
		logger:      logger,
		run:         worker.NewRun(opts.RunID),
		inbound:     taskqueue.New(InboundQueueName),
		bookkeeping: taskqueue.New(BookkeepingQueueName),
		ccf:         taskqueue.New(CCFQueueName),
		memory:      opts.Memory,
		escalator:   esc,
	}

	peers := make([]device.Context, len(opts.Devices))
	for i, id := range opts.Devices {
		peers[i] = device.Context{Device: id}
	}
	for i, id := range opts.Devices {
		w, err := worker.New(worker.Config{
			Inbound:     p.inbound,
			Bookkeeping: p.bookkeeping,
			CCF:         p.ccf,
			Memory:      p.memory,
			InitTile:    opts.InitTile,
			DeviceID:    id,
			WorkerID:    i,
			Context:     peers[i],
			Peers:       peers,
			Driver:      opts.Driver,
			Backend:     opts.Backend,
			Run:         p.run,
			NumPeaks:    opts.NumPeaks,
			Escalator:   esc,
			Logger:      logger,
			Bus:         opts.Bus,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
	}
	return p, nil
}

// Start launches every worker. ctx interrupts blocked workers when done;
// it is not required for a normal shutdown.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pipeline: already started")
	}
	p.started = true
	p.escalator.Attach(p)

	p.group = pool.New().WithErrors()
	for _, w := range p.workers {
		w := w
		p.group.Go(func() error {
			err := w.Run(ctx)
			if err != nil {
				p.logger.Error("worker failed, cancelling run", "worker_id", w.ID(), "error", err.Error())
				p.Cancel()
			}
			return err
		})
	}

	p.logger.Info("worker pool started", "workers", len(p.workers), "devices", p.opts.Devices)
	p.publish(event.NewPoolStartedEvent(p.opts.RunID, len(p.workers), p.opts.Devices))
	return nil
}

// Submit enqueues an alignment request.
func (p *Pool) Submit(t *task.Task) {
	p.inbound.Put(t)
}

// BookkeepingDone tells every worker that no further work will be
// produced. The flag is visible to all workers immediately; the queued
// BookkeepingDone task wakes a worker blocked on an empty queue.
func (p *Pool) BookkeepingDone() {
	p.run.MarkBookkeepingDone()
	p.inbound.Put(task.NewBookkeepingDone())
	p.logger.Debug("bookkeeping done signalled")
}

// Cancel aborts the run. Pending requests are not processed. It is safe to
// call from any goroutine, any number of times.
func (p *Pool) Cancel() {
	p.cancelled.Store(true)
	p.inbound.Put(task.NewCancel())
}

// CancelExecution cancels the run once, no matter how often it is called.
// It makes the pool usable as a fatal.Canceler.
func (p *Pool) CancelExecution() {
	p.cancelOnce.Do(func() {
		p.logger.Warn("run cancelled by fatal error escalation")
		p.Cancel()
	})
}

// Cancelled reports whether Cancel has been called.
func (p *Pool) Cancelled() bool {
	return p.cancelled.Load()
}

// Wait blocks until every worker has terminated, then posts one sentinel to
// each downstream queue and releases cached scratch memory. It returns the
// joined worker errors. Calling Wait more than once returns the same result.
func (p *Pool) Wait() error {
	p.mu.Lock()
	group := p.group
	p.mu.Unlock()
	if group == nil {
		return errors.New("pipeline: not started")
	}

	p.waitOnce.Do(func() {
		p.waitErr = group.Wait()

		for _, q := range []*taskqueue.Queue{p.bookkeeping, p.ccf} {
			q.Put(task.NewSentinel())
			p.publish(event.NewSentinelPostedEvent(-1, q.Name()))
		}
		for _, w := range p.workers {
			p.memory.Reclaim(w.ID())
		}
		p.escalator.Attach(nil)

		p.logger.Info("worker pool stopped", "cancelled", p.Cancelled(), "error", errString(p.waitErr))
		p.publish(event.NewPoolStoppedEvent(p.opts.RunID, p.Cancelled(), p.waitErr))
	})
	return p.waitErr
}

// Run returns the shared state of this pool's run.
func (p *Pool) Run() *worker.Run { return p.run }

// Workers returns the pool's workers, indexed by worker id.
func (p *Pool) Workers() []*worker.Worker { return p.workers }

// Inbound returns the alignment queue read by the workers.
func (p *Pool) Inbound() *taskqueue.Queue { return p.inbound }

// Bookkeeping returns the queue of bookkeeping checks.
func (p *Pool) Bookkeeping() *taskqueue.Queue { return p.bookkeeping }

// CCF returns the queue of CCF tasks.
func (p *Pool) CCF() *taskqueue.Queue { return p.ccf }

// Stats returns the statistics of all three queues.
func (p *Pool) Stats() []taskqueue.Stats {
	return []taskqueue.Stats{p.inbound.Stats(), p.bookkeeping.Stats(), p.ccf.Stats()}
}

func (p *Pool) publish(e event.Event) {
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(e)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
