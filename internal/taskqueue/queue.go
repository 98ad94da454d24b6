package taskqueue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Iron-Ham/pciam/internal/task"
)

// ErrInterrupted is returned by Take when the caller's context ends before a
// task becomes available.
var ErrInterrupted = errors.New("queue wait interrupted")

// Queue is an unbounded multi-producer, multi-consumer priority queue.
// All methods are safe for concurrent use.
type Queue struct {
	name string

	mu    sync.Mutex
	items entryHeap
	seq   uint64
	takes uint64

	// ready is closed and replaced on every Put to wake blocked takers.
	ready chan struct{}
}

// New creates an empty queue. The name appears in Stats and error messages.
func New(name string) *Queue {
	return &Queue{
		name:  name,
		ready: make(chan struct{}),
	}
}

// Name returns the queue's name.
func (q *Queue) Name() string {
	return q.name
}

// Put enqueues t. It never blocks. A nil task is ignored.
func (q *Queue) Put(t *task.Task) {
	if t == nil {
		return
	}
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, entry{task: t, seq: q.seq})
	close(q.ready)
	q.ready = make(chan struct{})
	q.mu.Unlock()
}

// Take removes and returns the highest-priority task, blocking while the
// queue is empty. It returns ErrInterrupted if ctx is done first.
func (q *Queue) Take(ctx context.Context) (*task.Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := heap.Pop(&q.items).(entry)
			q.takes++
			q.mu.Unlock()
			return e.task, nil
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrInterrupted, q.name, context.Cause(ctx))
		case <-ready:
		}
	}
}

// TryTake removes and returns the highest-priority task without blocking.
// The boolean is false if the queue was empty.
func (q *Queue) TryTake() (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	e := heap.Pop(&q.items).(entry)
	q.takes++
	return e.task, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Count returns how many queued tasks have the given kind.
func (q *Queue) Count(kind task.Kind) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.items {
		if e.task.Kind == kind {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Name:  q.name,
		Depth: len(q.items),
		Puts:  q.seq,
		Takes: q.takes,
	}
}
