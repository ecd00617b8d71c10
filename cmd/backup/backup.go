package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/smartsync/cmd/util"
	"github.com/sidkik/smartsync/pkg/config"
	"github.com/sidkik/smartsync/pkg/errors"
	"github.com/sidkik/smartsync/pkg/sync"
)

// Mocked for unit testing.
var (
	stdout   io.Writer = os.Stdout
	getPaths           = util.GetPaths
)

type options struct {
	dryRun        bool
	checksum      bool
	deleteOrphans bool
	workers       int
	modifyWindow  time.Duration
}

// New creates a new `backup` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "backup CONFIG DEVICE",
		Short: "Run every backup of a device",
		Long: "Run every backup of a device. CONFIG is either the path to a backup " +
			"configuration, or the name it was registered under.\n" +
			"Files that are new or changed since the last run are copied to the " +
			"destination. Files that were deleted from the sources are left in " +
			"the destination unless --delete-orphans is set.",
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			paths, err := getPaths(cmd)
			if err == nil {
				err = run(ctx, paths, args[0], args[1], opts)
			}
			if err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"Print what would be copied without touching the destination or the configuration.")
	cmd.Flags().BoolVar(&opts.checksum, "checksum", false,
		"Compare the contents of files whose size and modification time match.")
	cmd.Flags().BoolVar(&opts.deleteOrphans, "delete-orphans", false,
		"Delete files from the destination that no longer exist in any source.")
	cmd.Flags().IntVar(&opts.workers, "workers", 0,
		"The number of files to process at once, shared between the device's backups. "+
			"Defaults to the number of CPUs.")
	cmd.Flags().DurationVar(&opts.modifyWindow, "modify-window", 0,
		"Treat modification times within this duration of each other as equal.")
	return cmd
}

func run(ctx context.Context, paths config.Paths, ref, device string, opts options) error {
	path, err := paths.ResolveBackup(ref)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.ConfigNotReadable{Path: path, Err: errors.FileNotFound{Path: path}}
		}
		return errors.ConfigNotReadable{Path: path, Err: err}
	}

	// Hold the lock for the whole run so that edits made meanwhile aren't
	// overwritten when last_run is saved.
	unlock, err := config.Lock(path)
	if err != nil {
		return errors.WithContext(err, "lock backup configuration")
	}
	defer func() {
		if err := unlock(); err != nil {
			log.WithError(err).Warn("Failed to release lock")
		}
	}()

	backup, err := config.LoadBackup(path)
	if err != nil {
		return err
	}

	engineOpts := sync.Options{
		Workers:       opts.workers,
		Checksum:      opts.checksum,
		ModTimeWindow: opts.modifyWindow,
	}
	if opts.deleteOrphans {
		engineOpts.Orphans = sync.OrphanDelete
	}

	report, err := sync.NewEngine(engineOpts).RunDevice(ctx, backup, device, opts.dryRun)
	if err != nil {
		return err
	}

	if !opts.dryRun && lastRunAdvanced(report) {
		if err := config.SaveBackup(backup, path); err != nil {
			return errors.WithContext(err, "save last run times")
		}
	}

	printReport(report)

	if failed := report.Failed(); len(failed) > 0 {
		log.WithError(report.Err()).Debug("Backups failed")
		return errors.NewFriendlyError("%d of %d backups on device %q failed:\n%s",
			len(failed), len(report.Jobs), device, report.Err())
	}
	return nil
}

func lastRunAdvanced(report *sync.DeviceReport) bool {
	for _, job := range report.Jobs {
		if job.LastRunAdvanced {
			return true
		}
	}
	return false
}

func printReport(report *sync.DeviceReport) {
	if len(report.Jobs) == 0 {
		fmt.Fprintf(stdout, "Device %q has no backups.\n", report.Device)
		return
	}

	if report.DryRun {
		printPlan(report)
	}

	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("BACKUP", "NEW", "CHANGED", "UNCHANGED", "ORPHANED", "TRANSFERRED", "STATUS")
	for _, job := range report.Jobs {
		table.AddRow(job.Job,
			job.Count(sync.New),
			job.Count(sync.Changed),
			job.Count(sync.Unchanged),
			job.Count(sync.Orphaned),
			humanize.Bytes(uint64(transferred(job))),
			status(job))
	}
	fmt.Fprintln(stdout, table)
}

// printPlan lists every file a dry run would have touched.
func printPlan(report *sync.DeviceReport) {
	for _, job := range report.Jobs {
		actions := job.Actions()
		if len(actions) == 0 {
			continue
		}

		fmt.Fprintf(stdout, "%s:\n", job.Job)
		for _, action := range actions {
			verb := "copy"
			if action.Class == sync.Orphaned {
				verb = "delete"
			}
			fmt.Fprintf(stdout, "  would %s %s (%s)\n", verb, action.Path, action.Class)
		}
	}
	fmt.Fprintln(stdout)
}

// transferred is the number of bytes copied, or that would have been copied
// in a dry run.
func transferred(job *sync.JobReport) int64 {
	if !job.DryRun {
		return job.BytesCopied()
	}

	var n int64
	for _, action := range job.Actions() {
		if action.Class == sync.New || action.Class == sync.Changed {
			n += action.Size
		}
	}
	return n
}

func status(job *sync.JobReport) string {
	switch {
	case job.Err != nil:
		return "failed"
	case job.DryRun:
		return "dry run"
	case job.LastRunAdvanced:
		return "ok"
	default:
		return "up to date"
	}
}
