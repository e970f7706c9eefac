package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs row-strip jobs for the frame kernels
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	once      sync.Once
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	activeWorkers atomic.Int64
}

// PoolStats is a snapshot of the pool counters
type PoolStats struct {
	Workers       int   `json:"workers"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	ActiveWorkers int64 `json:"active_workers"`
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		wp.activeWorkers.Add(1)
		job()
		wp.activeWorkers.Add(-1)
		wp.completedJobs.Add(1)
	}
}

// Submit adds a job to the queue. It returns false once the pool is closed.
func (wp *WorkerPool) Submit(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	wp.totalJobs.Add(1)
	wp.jobQueue <- job
	return true
}

// Run submits the jobs and blocks until every one of them has finished.
// Jobs the pool refuses (after Close) run on the calling goroutine.
// Jobs must not call Run themselves.
func (wp *WorkerPool) Run(jobs ...func()) {
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		task := func() {
			defer wg.Done()
			job()
		}
		if !wp.Submit(task) {
			task()
		}
	}
	wg.Wait()
}

// ForEachStrip splits [0, n) into contiguous strips, one per worker, and runs fn
// on each strip concurrently. Strip i always covers the same rows for a given n.
// A nil pool runs fn inline over the whole range.
func (wp *WorkerPool) ForEachStrip(n int, fn func(strip, start, end int)) int {
	if n <= 0 {
		return 0
	}
	if wp == nil {
		fn(0, 0, n)
		return 1
	}
	strips := wp.workers
	if strips > n {
		strips = n
	}
	rowsPerStrip := (n + strips - 1) / strips // ceil division

	jobs := make([]func(), 0, strips)
	for i := 0; i < strips; i++ {
		start := i * rowsPerStrip
		end := start + rowsPerStrip
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		strip := i
		jobs = append(jobs, func() { fn(strip, start, end) })
	}
	wp.Run(jobs...)
	return len(jobs)
}

// Workers returns the number of workers
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// GetStats returns the current counters
func (wp *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		Workers:       wp.workers,
		TotalJobs:     wp.totalJobs.Load(),
		CompletedJobs: wp.completedJobs.Load(),
		ActiveWorkers: wp.activeWorkers.Load(),
	}
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.jobQueue)
		wp.mu.Unlock()
	})
}
