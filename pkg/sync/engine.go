package sync

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/smartsync/pkg/config"
	"github.com/sidkik/smartsync/pkg/errors"
)

// OrphanPolicy decides what happens to destination files that no longer
// exist in any source.
type OrphanPolicy int

const (
	// OrphanKeep reports orphans and leaves them in place. Backups are
	// additive by default.
	OrphanKeep OrphanPolicy = iota

	// OrphanDelete removes orphans from the destination.
	OrphanDelete
)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Workers bounds how many files are compared or copied at once. When a
	// device runs several sync jobs, the budget is split between the jobs.
	// It defaults to the number of CPUs.
	Workers int

	// Checksum enables comparing file contents when the size and
	// modification time of a destination file match its source.
	Checksum bool

	// ModTimeWindow is how far apart modification times can be while still
	// being considered equal. Useful for filesystems with coarse timestamps.
	ModTimeWindow time.Duration

	Orphans OrphanPolicy

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Engine executes sync jobs.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Engine{opts: opts}
}

// RunDevice runs every sync job of `device`. Jobs run concurrently, and a
// failed job doesn't stop the others. Jobs whose destinations overlap are
// not run at all.
// Successful jobs have their LastRun updated in `backup`, matched by ID. It's
// up to the caller to save it.
func (e *Engine) RunDevice(ctx context.Context, backup *config.Backup, device string,
	dryRun bool) (*DeviceReport, error) {

	d, err := backup.Device(device)
	if err != nil {
		return nil, err
	}

	report := &DeviceReport{
		Device:   device,
		DeviceID: d.ID,
		DryRun:   dryRun,
		Jobs:     make([]*JobReport, len(d.SyncJobs)),
	}
	overlaps := findOverlaps(d)
	jobWorkers, fileWorkers := splitWorkers(e.opts.Workers, len(d.SyncJobs)-len(overlaps))
	log.WithFields(log.Fields{
		"device":      device,
		"jobWorkers":  jobWorkers,
		"fileWorkers": fileWorkers,
	}).Debug("Running backups")

	var g errgroup.Group
	g.SetLimit(jobWorkers)
	for i, job := range d.SyncJobs {
		if overlap, ok := overlaps[i]; ok {
			log.WithError(overlap).Error("Skipping backup")
			report.Jobs[i] = &JobReport{
				Device: device,
				Job:    job.Name,
				JobID:  job.ID,
				DryRun: dryRun,
				Err:    overlap,
			}
			continue
		}

		// Each job runs on its own copy so that `backup` is only touched
		// from this goroutine.
		g.Go(func() error {
			report.Jobs[i] = e.run(ctx, device, &job, dryRun, fileWorkers)
			return nil
		})
	}

	// run never returns an error through the group.
	_ = g.Wait()

	for _, job := range report.Jobs {
		if job.LastRunAdvanced {
			job.LastRunAdvanced = backup.RecordRun(d.ID, job.JobID, job.Start)
		}
	}
	return report, nil
}

// splitWorkers divides the worker budget between the jobs that run at once
// and the files each of them handles at once, so that a device never has
// many more than `workers` files in flight.
func splitWorkers(workers, jobs int) (jobWorkers, fileWorkers int) {
	jobWorkers = max(min(workers, jobs), 1)
	return jobWorkers, max(workers/jobWorkers, 1)
}

// Run executes a single sync job. The job's LastRun is set to the start of
// the run if it succeeded, and either copied something or never ran before.
// Dry runs never modify the destination or the job.
func (e *Engine) Run(ctx context.Context, device string, job *config.SyncJob,
	dryRun bool) *JobReport {
	return e.run(ctx, device, job, dryRun, e.opts.Workers)
}

func (e *Engine) run(ctx context.Context, device string, job *config.SyncJob,
	dryRun bool, workers int) *JobReport {

	report := &JobReport{
		RunID:  uuid.New().String(),
		Device: device,
		Job:    job.Name,
		JobID:  job.ID,
		DryRun: dryRun,
		Start:  e.opts.Clock.Now(),
	}
	logger := log.WithFields(log.Fields{
		"device":   device,
		"backup":   job.Name,
		"backupID": job.ID,
		"run":      report.RunID,
	})

	actions, err := e.plan(ctx, device, job, workers)
	if err != nil {
		logger.WithError(err).Error("Failed to plan backup")
		report.Err = err
		return report
	}

	var a applier = diskApplier{}
	if dryRun {
		a = previewApplier{}
	}
	report.Files = applyAll(ctx, actions, a, e.opts.Orphans, workers, logger)

	if failures := report.Failures(); len(failures) > 0 {
		report.Err = errors.RunFailed{Device: device, Job: job.Name, Failures: failures}
	}

	logger.WithFields(log.Fields{
		"new":       report.Count(New),
		"changed":   report.Count(Changed),
		"unchanged": report.Count(Unchanged),
		"orphaned":  report.Count(Orphaned),
		"dryRun":    dryRun,
	}).Infof("Copied %d files, deleted %d, failed %d.",
		report.CountOutcome(Copied), report.CountOutcome(Deleted), report.CountOutcome(Failed))

	if dryRun || report.Err != nil {
		return report
	}

	if job.LastRun == nil || report.CountOutcome(Copied)+report.CountOutcome(Deleted) > 0 {
		report.LastRunAdvanced = job.MarkRun(report.Start)
	}
	return report
}

// plan validates the job against the filesystem and classifies every file.
// It fails before anything is written if a source is missing, or if the
// destination can't be used.
func (e *Engine) plan(ctx context.Context, device string, job *config.SyncJob,
	workers int) ([]Action, error) {
	dest, err := resolvePath(job.Destination)
	if err != nil {
		return nil, errors.WithContext(err, "resolve destination")
	}

	var sources []string
	for _, src := range job.Sources {
		resolved, err := resolvePath(src)
		if err != nil {
			return nil, errors.WithContext(err, "resolve source")
		}

		if _, err := fs.Stat(resolved); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.SourceMissing{Device: device, Job: job.Name, Path: resolved}
			}
			return nil, errors.WithContext(err, "stat source")
		}
		sources = append(sources, resolved)
	}

	if len(sources) == 0 {
		return nil, errors.MissingFieldError{Field: "sources"}
	}

	if err := config.ValidateDestination(device, job.Name, dest, sources); err != nil {
		return nil, err
	}

	if fi, err := fs.Stat(dest); err == nil && !fi.IsDir() {
		return nil, errors.InvalidDestination{
			Device:      device,
			Job:         job.Name,
			Destination: dest,
			Reason:      "it is not a directory",
		}
	}

	sourceFiles, err := SnapshotSources(sources)
	if err != nil {
		return nil, errors.WithContext(err, "snapshot sources")
	}

	destFiles, err := SnapshotDestination(dest)
	if err != nil {
		return nil, errors.WithContext(err, "snapshot destination")
	}

	return diff(ctx, sourceFiles, destFiles, dest, compareOptions{
		checksum:      e.opts.Checksum,
		modTimeWindow: e.opts.ModTimeWindow,
		workers:       workers,
	})
}

// findOverlaps returns the jobs of `device` whose destination is the same as,
// or nested in, the destination of another job, keyed by their index.
func findOverlaps(device *config.Device) map[int]errors.DestinationOverlap {
	dests := make([]string, len(device.SyncJobs))
	for i, job := range device.SyncJobs {
		dest, err := resolvePath(job.Destination)
		if err != nil {
			dest = filepath.Clean(job.Destination)
		}
		dests[i] = dest
	}

	overlaps := map[int]errors.DestinationOverlap{}
	for i := range dests {
		for j := range dests {
			if i == j {
				continue
			}

			if config.Contains(dests[i], dests[j]) || config.Contains(dests[j], dests[i]) {
				if _, ok := overlaps[i]; !ok {
					overlaps[i] = errors.DestinationOverlap{
						Device: device.Name,
						Job:    device.SyncJobs[i].Name,
						Other:  device.SyncJobs[j].Name,
					}
				}
			}
		}
	}
	return overlaps
}

func resolvePath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
