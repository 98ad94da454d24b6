package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/pciam/internal/task"
	"github.com/Iron-Ham/pciam/internal/taskqueue"
	"github.com/Iron-Ham/pciam/internal/worker"
)

// ConsumeUntilSentinel takes tasks from q and passes them to fn until a
// Sentinel arrives, fn fails or ctx ends. Interruption by ctx is not an
// error.
//
// A Sentinel is only posted once its producers have stopped, but it outranks
// the derived tasks already queued, so those are drained into fn before
// returning.
func ConsumeUntilSentinel(ctx context.Context, q *taskqueue.Queue, fn func(*task.Task) error) error {
	for {
		t, err := q.Take(ctx)
		if err != nil {
			if errors.Is(err, taskqueue.ErrInterrupted) {
				return nil
			}
			return err
		}
		if t.Kind == task.KindSentinel {
			return drain(q, fn)
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

// drain passes every task left in q to fn without blocking. Further
// sentinels are discarded.
func drain(q *taskqueue.Queue, fn func(*task.Task) error) error {
	for {
		t, ok := q.TryTake()
		if !ok {
			return nil
		}
		if t.Kind == task.KindSentinel {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

// Summary describes a finished Execute call.
type Summary struct {
	RunID     string
	Requests  int
	Checks    int
	CCF       int
	Cancelled bool
	// Unprocessed counts alignment requests left queued, non-zero only
	// after a cancellation.
	Unprocessed int
	Duration    time.Duration
	Workers     []worker.Stats
	Queues      []taskqueue.Stats
}

// Execute starts p, submits requests and runs the two downstream stages
// until the pool drains. The bookkeeping stage counts checks and signals
// BookkeepingDone once every request has been checked. onCCF is called for
// each CCF task; an error from it cancels the run.
func Execute(ctx context.Context, p *Pool, requests []*task.Task, onCCF func(*task.Task) error) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: p.Run().ID(), Requests: len(requests)}

	if err := p.Start(ctx); err != nil {
		return sum, err
	}

	stages := pool.New().WithErrors()
	stages.Go(func() error {
		if len(requests) == 0 {
			p.BookkeepingDone()
		}
		err := ConsumeUntilSentinel(ctx, p.Bookkeeping(), func(t *task.Task) error {
			if t.Kind != task.KindBookkeepingCheck {
				return fmt.Errorf("unexpected %s on %s queue", t.Kind, BookkeepingQueueName)
			}
			sum.Checks++
			if sum.Checks == len(requests) {
				p.BookkeepingDone()
			}
			return nil
		})
		if err != nil {
			p.Cancel()
		}
		return err
	})
	stages.Go(func() error {
		err := ConsumeUntilSentinel(ctx, p.CCF(), func(t *task.Task) error {
			if t.Kind != task.KindCCF {
				return fmt.Errorf("unexpected %s on %s queue", t.Kind, CCFQueueName)
			}
			sum.CCF++
			if onCCF == nil {
				return nil
			}
			return onCCF(t)
		})
		if err != nil {
			p.Cancel()
		}
		return err
	})

	for _, r := range requests {
		p.Submit(r)
	}

	poolErr := p.Wait()
	stageErr := stages.Wait()

	sum.Cancelled = p.Cancelled()
	sum.Unprocessed = p.Inbound().Count(task.KindAlignment)
	sum.Duration = time.Since(start)
	for _, w := range p.Workers() {
		sum.Workers = append(sum.Workers, w.Stats())
	}
	sum.Queues = p.Stats()
	return sum, errors.Join(poolErr, stageErr)
}
