// Package worker runs validations off the caller's goroutine.
//
// A Pool keeps N workers consuming jobs and producing results, with
// progress events on a separate channel. A Client runs a single job and
// waits for its result, and ValidateBatch validates a fixed set of jobs
// and returns their results in order.
//
// Example usage:
//
//	pool := worker.NewPool(validator, 4)
//	defer pool.Close()
//
//	for _, path := range files {
//	    if _, err := pool.Submit(ctx, worker.NewFileJob(path, settings)); err != nil {
//	        return err
//	    }
//	}
//
//	for result := range pool.Results() {
//	    if result.Error != nil {
//	        // Handle error
//	    }
//	    // Process result.Result
//	}
package worker
