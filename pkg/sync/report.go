package sync

import (
	"time"

	"github.com/sidkik/smartsync/pkg/errors"
)

// Outcome is what happened to a file during a run.
type Outcome string

const (
	// Planned files would have been copied or deleted, but the run was a
	// dry run.
	Planned Outcome = "planned"

	// Copied files were copied to the destination.
	Copied Outcome = "copied"

	// Deleted orphans were removed from the destination.
	Deleted Outcome = "deleted"

	// Skipped files needed no work, or were orphans left in place.
	Skipped Outcome = "skipped"

	// Failed files couldn't be copied or deleted.
	Failed Outcome = "failed"
)

// FileResult is the outcome of a single action.
type FileResult struct {
	Path    string
	Class   Classification
	Outcome Outcome
	Size    int64

	// Err is an errors.CopyFailed if Outcome is Failed.
	Err error
}

// JobReport summarizes a run of a single sync job.
type JobReport struct {
	// RunID identifies the run in logs.
	RunID  string
	Device string
	Job    string
	// JobID is the sync job's stable identifier. RunDevice records last_run
	// against it.
	JobID  string
	DryRun bool
	Start  time.Time

	Files []FileResult

	// LastRunAdvanced is true if the run moved the job's last_run forward.
	LastRunAdvanced bool

	// Err is nil if the job succeeded. Otherwise it's either the error that
	// stopped the job before any file was touched, or an errors.RunFailed.
	Err error
}

// Succeeded returns whether the job completed without any failures.
func (r *JobReport) Succeeded() bool {
	return r.Err == nil
}

// Count returns the number of files with the given classification.
func (r *JobReport) Count(class Classification) int {
	var n int
	for _, f := range r.Files {
		if f.Class == class {
			n++
		}
	}
	return n
}

// CountOutcome returns the number of files with the given outcome.
func (r *JobReport) CountOutcome(outcome Outcome) int {
	var n int
	for _, f := range r.Files {
		if f.Outcome == outcome {
			n++
		}
	}
	return n
}

// Actions returns the files that the run copied, deleted or failed on, or
// in a dry run, the files it would have touched.
func (r *JobReport) Actions() []FileResult {
	var actions []FileResult
	for _, f := range r.Files {
		if f.Outcome != Skipped {
			actions = append(actions, f)
		}
	}
	return actions
}

// BytesCopied is the total size of the files that were copied.
func (r *JobReport) BytesCopied() int64 {
	var n int64
	for _, f := range r.Files {
		if f.Outcome == Copied {
			n += f.Size
		}
	}
	return n
}

// Failures returns the per-file errors of the run.
func (r *JobReport) Failures() []errors.CopyFailed {
	var failures []errors.CopyFailed
	for _, f := range r.Files {
		var copyErr errors.CopyFailed
		if f.Outcome == Failed && errors.As(f.Err, &copyErr) {
			failures = append(failures, copyErr)
		}
	}
	return failures
}

// DeviceReport summarizes a run of every sync job on a device.
type DeviceReport struct {
	Device   string
	DeviceID string
	DryRun   bool

	// Jobs are in the same order as the device's sync jobs.
	Jobs []*JobReport
}

// Failed returns the reports of the jobs that failed.
func (r *DeviceReport) Failed() []*JobReport {
	var failed []*JobReport
	for _, job := range r.Jobs {
		if !job.Succeeded() {
			failed = append(failed, job)
		}
	}
	return failed
}

// Err combines the errors of every failed job, or returns nil if they all
// succeeded.
func (r *DeviceReport) Err() error {
	var errs []error
	for _, job := range r.Failed() {
		errs = append(errs, job.Err)
	}
	return errors.Join(errs...)
}
