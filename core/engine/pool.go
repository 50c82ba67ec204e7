package engine

import (
	"context"
	"sync"
)

// WorkerPool bounds fan-out for multi-scope scans so a whole-organization
// gap sweep cannot overwhelm the backing store with parallel snapshot
// reads.
type WorkerPool struct {
	workers int

	mu      sync.Mutex
	jobs    chan func()
	wg      sync.WaitGroup
	started bool
}

// NewWorkerPool creates a pool with the given concurrency. workers < 1 is
// clamped to 1.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers}
}

// Start launches the workers. Idempotent.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.jobs = make(chan func(), p.workers*2)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
}

// Submit enqueues a job, blocking when the queue is full. Returns false if
// ctx expires before the job is accepted or the pool is not running.
func (p *WorkerPool) Submit(ctx context.Context, job func()) bool {
	p.mu.Lock()
	jobs := p.jobs
	started := p.started
	p.mu.Unlock()
	if !started {
		return false
	}

	select {
	case jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops accepting jobs and waits for in-flight work to drain.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
