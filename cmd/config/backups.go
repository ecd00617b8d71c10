package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/sidkik/smartsync/cmd/util"
	"github.com/sidkik/smartsync/pkg/config"
	"github.com/sidkik/smartsync/pkg/errors"
)

func newBackupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Edit a backup configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list-devices PATH",
			Short: "List the devices in a backup configuration, and their backups",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				path, err := resolveBackup(cmd, args[0])
				if err == nil {
					err = listDevices(path)
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
		&cobra.Command{
			Use:   "init PATH",
			Short: "Create an empty backup configuration",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				path, err := resolveBackup(cmd, args[0])
				if err == nil {
					err = initBackup(path)
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
		&cobra.Command{
			Use:   "add-device PATH DEVICE",
			Short: "Add a device to a backup configuration",
			Args:  cobra.ExactArgs(2),
			Run: func(cmd *cobra.Command, args []string) {
				path, err := resolveBackup(cmd, args[0])
				if err == nil {
					err = addDevice(path, args[1])
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
		&cobra.Command{
			Use:   "add-backup PATH DEVICE NAME DESTINATION SOURCE...",
			Short: "Add a backup to a device",
			Long: "Add a backup to a device. Every SOURCE is copied into DESTINATION " +
				"when the device is backed up.\nIf several sources contain the same " +
				"file, the source listed last wins.",
			Args: cobra.MinimumNArgs(5),
			Run: func(cmd *cobra.Command, args []string) {
				path, err := resolveBackup(cmd, args[0])
				if err == nil {
					err = addBackup(path, args[1], args[2], args[3], args[4:])
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
		newEditBackupCommand(),
	)
	return cmd
}

// editSpec describes an `edit-backup` subcommand. Each one changes a single
// backup using a fourth argument.
type editSpec struct {
	use, short string
	fn         func(b *config.Backup, device, name, arg string) error
	msg        string

	// isPath is set if the argument is a path that should be made absolute.
	isPath bool
}

var backupEdits = []editSpec{
	{
		use:   "rename PATH DEVICE NAME NEW_NAME",
		short: "Rename a backup",
		fn: func(b *config.Backup, device, name, newName string) error {
			return b.RenameSyncJob(device, name, newName)
		},
		msg: "Renamed backup %q on device %q to %q.\n",
	},
	{
		use:   "set-dest PATH DEVICE NAME DESTINATION",
		short: "Change where a backup is copied to",
		fn: func(b *config.Backup, device, name, dest string) error {
			return b.SetDestination(device, name, dest)
		},
		msg:    "Backup %q on device %q now copies to %s.\n",
		isPath: true,
	},
	{
		use:   "add-source PATH DEVICE NAME SOURCE",
		short: "Add a source to a backup",
		fn: func(b *config.Backup, device, name, source string) error {
			return b.AddSource(device, name, source)
		},
		msg:    "Backup %q on device %q now includes %s.\n",
		isPath: true,
	},
}

func newEditBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit-backup",
		Short: "Change an existing backup",
	}

	for _, edit := range backupEdits {
		cmd.AddCommand(&cobra.Command{
			Use:   edit.use,
			Short: edit.short,
			Args:  cobra.ExactArgs(4),
			Run: func(cmd *cobra.Command, args []string) {
				path, err := resolveBackup(cmd, args[0])
				if err == nil {
					err = editBackup(path, args[1], args[2], args[3], edit)
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		})
	}
	return cmd
}

func listDevices(path string) error {
	backup, err := config.LoadBackup(path)
	if err != nil {
		return err
	}

	if len(backup.Devices) == 0 {
		fmt.Fprintf(stdout, "No devices in %s.\n", path)
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("DEVICE", "BACKUP", "DESTINATION", "SOURCES", "LAST RUN")
	for _, device := range backup.Devices {
		if len(device.SyncJobs) == 0 {
			table.AddRow(device.Name, "", "", "", "")
			continue
		}

		for _, job := range device.SyncJobs {
			lastRun := "never"
			if job.LastRun != nil {
				lastRun = humanize.Time(*job.LastRun)
			}
			table.AddRow(device.Name, job.Name, job.Destination,
				strings.Join(job.Sources, ", "), lastRun)
		}
	}
	fmt.Fprintln(stdout, table)
	return nil
}

func initBackup(path string) error {
	err := config.UpdateBackup(path, func(*config.Backup) error { return nil })
	if err != nil {
		return errors.WithContext(err, "init backup configuration")
	}

	fmt.Fprintf(stdout, "Initialized backup configuration at %s.\n", path)
	return nil
}

func addDevice(path, device string) error {
	err := config.UpdateBackup(path, func(b *config.Backup) error {
		_, err := b.AddDevice(device)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Added device %q to %s.\n", device, path)
	return nil
}

func addBackup(path, device, name, destination string, sources []string) error {
	expanded, err := expandPaths(append([]string{destination}, sources...)...)
	if err != nil {
		return err
	}

	err = config.UpdateBackup(path, func(b *config.Backup) error {
		_, err := b.AddSyncJob(device, name, expanded[1:], expanded[0])
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Added backup %q to device %q.\n", name, device)
	return nil
}

func editBackup(path, device, name, arg string, edit editSpec) error {
	if edit.isPath {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return err
		}
		arg = expanded
	}

	err := config.UpdateBackup(path, func(b *config.Backup) error {
		return edit.fn(b, device, name, arg)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, edit.msg, name, device, arg)
	return nil
}
