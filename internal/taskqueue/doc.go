// Package taskqueue provides the unbounded, priority-ordered queues that
// connect pipeline stages.
//
// A [Queue] is safe for any number of producers and consumers. [Queue.Put]
// never blocks and never fails. [Queue.Take] blocks until a task is available
// or the caller's context is done, in which case it returns [ErrInterrupted].
//
// Tasks are ordered by [task.Less]; tasks of equal priority come out in the
// order they were put, so bulk work is processed FIFO while control signals
// jump ahead of it.
//
// Usage:
//
//	q := taskqueue.New("inbound")
//	q.Put(task.NewAlignment(t, neighbor, task.North))
//
//	next, err := q.Take(ctx)
//	if errors.Is(err, taskqueue.ErrInterrupted) {
//	    // caller asked us to stop
//	}
package taskqueue
