package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchValidator validates a fixed set of jobs and returns results in
// submission order.
type BatchValidator struct {
	validator Validator
	workers   int
}

// NewBatchValidator creates a new batch validator.
func NewBatchValidator(v Validator, workers int) *BatchValidator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchValidator{
		validator: v,
		workers:   workers,
	}
}

// ValidateBatch validates jobs in parallel. Jobs not started before ctx is
// cancelled get a WORKER_ERROR payload, so Results never holds nil.
func (bv *BatchValidator) ValidateBatch(ctx context.Context, jobs []Job) *BatchResult {
	results := make([]*JobResult, len(jobs))
	if len(jobs) == 0 {
		return &BatchResult{Results: results}
	}

	// For small batches, don't use parallelism
	if len(jobs) <= 2 {
		for i, job := range jobs {
			results[i] = execute(ctx, bv.validator, job, nil)
		}
		return summarize(results)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(bv.workers, len(jobs)))
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = execute(gctx, bv.validator, job, nil)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(results)
}

func summarize(results []*JobResult) *BatchResult {
	br := &BatchResult{Results: results, TotalJobs: len(results)}
	for _, r := range results {
		br.CompletedJobs++
		if r.Failed() {
			br.FailedJobs++
		}
		br.TotalDuration += r.Duration
	}
	return br
}

// ValidateBatch is a convenience function for batch validation using one
// worker per CPU.
func ValidateBatch(ctx context.Context, v Validator, jobs []Job) *BatchResult {
	return NewBatchValidator(v, runtime.NumCPU()).ValidateBatch(ctx, jobs)
}
