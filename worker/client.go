package worker

import (
	"context"
)

// Client runs one job at a time in its own goroutine: one message in, one
// result or error out. It mirrors the pool's isolation for callers that
// validate a single document and want to stay responsive meanwhile.
type Client struct {
	validator Validator
}

// NewClient creates a client over v.
func NewClient(v Validator) *Client {
	return &Client{validator: v}
}

// Run executes job and waits for it. progress, when non-nil, receives
// streaming progress events from the job's goroutine. Run returns ctx.Err()
// if ctx ends first; the job is then abandoned and its result dropped.
// A job that cannot produce a result returns its *ErrorPayload.
func (c *Client) Run(ctx context.Context, job Job, progress func(Progress)) (*JobResult, error) {
	done := make(chan *JobResult, 1)
	go func() {
		done <- execute(ctx, c.validator, job, progress)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.Error != nil {
			return res, res.Error
		}
		return res, nil
	}
}
