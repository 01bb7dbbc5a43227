package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tissguard/validator/pkg/logger"
)

// Errors returned by the pool.
var (
	ErrPoolClosed  = errors.New("worker: pool closed")
	ErrQueueFull   = errors.New("worker: queue full")
	ErrNoValidator = errors.New("worker: no validator configured")
)

// Pool manages a pool of worker goroutines for parallel validation.
// Each job runs in isolation: a panic in one job is reported as a
// WORKER_ERROR payload and the worker keeps serving.
type Pool struct {
	workers      int
	jobsChan     chan Job
	resultChan   chan *JobResult
	progressChan chan Progress
	validator    Validator
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	closed       atomic.Bool

	// Metrics
	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsFailed    atomic.Uint64
	totalDuration atomic.Uint64
}

// NewPool creates a new worker pool with the specified number of workers.
// If workers <= 0, it defaults to runtime.NumCPU().
func NewPool(validator Validator, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:      workers,
		jobsChan:     make(chan Job, workers*2),
		resultChan:   make(chan *JobResult, workers*2),
		progressChan: make(chan Progress, workers*16),
		validator:    validator,
		ctx:          ctx,
		cancel:       cancel,
	}

	// Start workers
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	logger.Debug("worker pool started", "workers", workers)
	return p
}

// Submit queues a job, blocking while the queue is full. It returns the
// job ID, which is generated when job.ID is zero.
func (p *Pool) Submit(ctx context.Context, job Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return uuid.Nil, ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	case <-p.ctx.Done():
		return uuid.Nil, ErrPoolClosed
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return job.ID, nil
	}
}

// SubmitAsync queues a job without blocking.
// It returns ErrQueueFull when no slot is free.
func (p *Pool) SubmitAsync(job Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return uuid.Nil, ErrPoolClosed
	}

	select {
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return job.ID, nil
	default:
		return uuid.Nil, ErrQueueFull
	}
}

// Results returns the channel for receiving job results.
func (p *Pool) Results() <-chan *JobResult {
	return p.resultChan
}

// Progress returns the channel of progress events. Events are dropped
// when nobody reads them.
func (p *Pool) Progress() <-chan Progress {
	return p.progressChan
}

// Close shuts down the pool, abandoning queued jobs, and waits for the
// workers to finish. Pending results are discarded.
func (p *Pool) Close() {
	if p.closed.Load() {
		return
	}
	p.cancel()
	if !p.shutdown() {
		return
	}

	// Drain results in background to prevent worker deadlock
	done := make(chan struct{})
	go func() {
		for range p.resultChan {
		}
		close(done)
	}()

	p.wg.Wait()
	close(p.resultChan)
	close(p.progressChan)
	<-done
}

// CloseAndWait stops accepting jobs, lets the queued ones finish and
// returns every result not yet read from Results.
func (p *Pool) CloseAndWait() *BatchResult {
	if p.closed.Load() {
		return &BatchResult{}
	}

	var results []*JobResult
	collected := make(chan struct{})
	go func() {
		for result := range p.resultChan {
			results = append(results, result)
		}
		close(collected)
	}()

	if !p.shutdown() {
		// a concurrent Close owns the channels
		<-collected
		return &BatchResult{}
	}

	p.wg.Wait()
	close(p.resultChan)
	close(p.progressChan)
	<-collected
	p.cancel()

	return &BatchResult{
		Results:       results,
		TotalJobs:     int(p.jobsSubmitted.Load()),
		CompletedJobs: int(p.jobsCompleted.Load()),
		FailedJobs:    int(p.jobsFailed.Load()),
		TotalDuration: time.Duration(p.totalDuration.Load()), //nolint:gosec // sum of durations
	}
}

// shutdown marks the pool closed and closes the job queue once.
func (p *Pool) shutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Swap(true) {
		return false
	}
	close(p.jobsChan)
	return true
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		JobsSubmitted: p.jobsSubmitted.Load(),
		JobsCompleted: p.jobsCompleted.Load(),
		JobsFailed:    p.jobsFailed.Load(),
		AvgDuration:   p.averageDuration(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	JobsFailed    uint64
	AvgDuration   time.Duration
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobsChan {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := execute(p.ctx, p.validator, job, p.emit)
		p.jobsCompleted.Add(1)
		if result.Failed() {
			p.jobsFailed.Add(1)
		}
		p.totalDuration.Add(uint64(result.Duration)) //nolint:gosec // durations are non-negative

		select {
		case <-p.ctx.Done():
			return
		case p.resultChan <- result:
		}
	}
}

func (p *Pool) emit(ev Progress) {
	select {
	case p.progressChan <- ev:
	default:
	}
}

func (p *Pool) averageDuration() time.Duration {
	completed := p.jobsCompleted.Load()
	if completed == 0 {
		return 0
	}
	return time.Duration(p.totalDuration.Load() / completed) //nolint:gosec // average of durations
}
