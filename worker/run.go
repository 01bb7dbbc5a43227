package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/stream"
)

// Validator is the interface the pool uses to run jobs.
// *engine.Validator implements it.
type Validator interface {
	ValidateBytes(ctx context.Context, data []byte, settings tv.Settings) *tv.Result
	ValidateFile(ctx context.Context, path string, settings tv.Settings, progress stream.ProgressFunc) *tv.Result
}

// execute runs one job. A panic inside the validator becomes a
// WORKER_ERROR payload; it never escapes.
func execute(ctx context.Context, v Validator, job Job, progress func(Progress)) (res *JobResult) {
	start := time.Now()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	res = &JobResult{ID: job.ID}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker job panicked", "job", job.ID, "panic", r, "stack", string(debug.Stack()))
			res.Result = nil
			res.Error = &ErrorPayload{Code: tv.CodeWorkerError, Message: fmt.Sprintf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	if v == nil {
		res.Error = errorPayload(ErrNoValidator)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Error = errorPayload(err)
		return res
	}

	var report stream.ProgressFunc
	if progress != nil {
		report = func(f float64) { progress(Progress{ID: job.ID, Fraction: f}) }
	}

	if job.Path != "" {
		res.Result = v.ValidateFile(ctx, job.Path, job.Settings, report)
	} else {
		res.Result = v.ValidateBytes(ctx, job.Input, job.Settings)
		if report != nil {
			report(1)
		}
	}
	return res
}

func errorPayload(err error) *ErrorPayload {
	return &ErrorPayload{Code: tv.CodeWorkerError, Message: err.Error()}
}
