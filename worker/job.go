package worker

import (
	"time"

	"github.com/google/uuid"

	tv "github.com/tissguard/validator"
)

// Job represents a validation job to be processed by a worker.
type Job struct {
	// ID is a unique identifier for this job. A zero ID is replaced on submit.
	ID uuid.UUID

	// Input is the raw document. It is ignored when Path is set.
	Input []byte

	// Path is a file to validate instead of Input.
	Path string

	// Settings are the rule toggles for this job.
	Settings tv.Settings
}

// NewJob creates a job for an in-memory document.
func NewJob(input []byte, settings tv.Settings) Job {
	return Job{ID: uuid.New(), Input: input, Settings: settings}
}

// NewFileJob creates a job for a file on disk.
func NewFileJob(path string, settings tv.Settings) Job {
	return Job{ID: uuid.New(), Path: path, Settings: settings}
}

// JobResult represents the result of a validation job.
// Exactly one of Result and Error is set.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID uuid.UUID `json:"id"`

	// Result contains the validation result.
	Result *tv.Result `json:"result,omitempty"`

	// Error is set when the job could not produce a result.
	Error *ErrorPayload `json:"error,omitempty"`

	// Duration is the time taken to run the job.
	Duration time.Duration `json:"durationNs"`
}

// Failed reports whether the job ended without a result.
func (r *JobResult) Failed() bool {
	return r.Error != nil
}

// ErrorPayload is the serialisable error a job reports instead of a result.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorPayload) Error() string {
	return e.Code + ": " + e.Message
}

// Progress is a streaming progress event for one job.
type Progress struct {
	ID       uuid.UUID `json:"id"`
	Fraction float64   `json:"fraction"`
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results, in submission order for batches.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that ended with an ErrorPayload.
	FailedJobs int

	// TotalDuration is the sum of the job durations.
	TotalDuration time.Duration
}

// HasErrors returns true if any job failed or produced an invalid result.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		if r.Error != nil {
			return true
		}
		if r.Result != nil && !r.Result.Valid {
			return true
		}
	}
	return false
}

// FindingCount returns the total number of findings across all results.
func (br *BatchResult) FindingCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Result != nil {
			count += len(r.Result.Findings)
		}
	}
	return count
}
