package taskqueue

import "github.com/Iron-Ham/pciam/internal/task"

// entry is a queued task plus its arrival sequence number.
type entry struct {
	task *task.Task
	seq  uint64
}

// entryHeap implements heap.Interface over entries, highest priority first
// and earliest arrival first within a priority.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	a, b := h[i].task, h[j].task
	if task.Less(a, b) {
		return true
	}
	if task.Less(b, a) {
		return false
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*h = old[:n-1]
	return e
}

// Stats is a snapshot of a queue's counters.
type Stats struct {
	Name  string `json:"name"`
	Depth int    `json:"depth"`
	Puts  uint64 `json:"puts"`
	Takes uint64 `json:"takes"`
}
