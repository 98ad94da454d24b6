// Package memory provides the scratch memory pool that correlation backends
// borrow auxiliary working buffers from.
package memory

import "sync"

// Pool keeps per-worker free lists of host scratch slices so repeated
// backend calls reuse memory instead of allocating per task.
// It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	free        map[int][][]float64
	outstanding map[int]int
	allocated   int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		free:        make(map[int][][]float64),
		outstanding: make(map[int]int),
	}
}

// Acquire returns a zeroed slice of length n for workerID, reusing a
// previously released slice when one is large enough.
func (p *Pool) Acquire(workerID, n int) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.outstanding[workerID]++
	list := p.free[workerID]
	for i := len(list) - 1; i >= 0; i-- {
		if cap(list[i]) >= n {
			buf := list[i][:n]
			p.free[workerID] = append(list[:i], list[i+1:]...)
			clear(buf)
			return buf
		}
	}
	p.allocated++
	return make([]float64, n)
}

// Release returns buf to workerID's free list.
func (p *Pool) Release(workerID int, buf []float64) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.outstanding[workerID] > 0 {
		p.outstanding[workerID]--
	}
	p.free[workerID] = append(p.free[workerID], buf[:cap(buf)])
}

// Reclaim drops every cached slice held for workerID.
func (p *Pool) Reclaim(workerID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.free, workerID)
}

// Outstanding returns how many slices workerID has acquired but not released.
func (p *Pool) Outstanding(workerID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding[workerID]
}

// Allocated returns how many slices the pool has allocated in total.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Cached returns the number of free slices held for workerID.
func (p *Pool) Cached(workerID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[workerID])
}
