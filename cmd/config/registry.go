package config

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/sidkik/smartsync/cmd/util"
	"github.com/sidkik/smartsync/pkg/config"
)

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the names that backup configurations are registered under",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create an empty registry",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				paths, err := getPaths(cmd)
				if err == nil {
					err = initRegistry(paths)
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
		&cobra.Command{
			Use:   "list-backups",
			Short: "List the registered backup configurations",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				paths, err := getPaths(cmd)
				if err == nil {
					err = listBackups(paths)
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
		&cobra.Command{
			Use:   "add-backup NAME PATH",
			Short: "Register a backup configuration under a name",
			Long: "Register a backup configuration under a name. The name can be " +
				"used instead of the path in every other command.",
			Args: cobra.ExactArgs(2),
			Run: func(cmd *cobra.Command, args []string) {
				paths, err := getPaths(cmd)
				if err == nil {
					err = registerBackup(paths, args[0], args[1])
				}
				if err != nil {
					util.HandleFatalError(err)
				}
			},
		},
	)
	return cmd
}

func initRegistry(paths config.Paths) error {
	if err := paths.UpdateRegistry(func(*config.Registry) error { return nil }); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Initialized registry at %s.\n", paths.Registry)
	return nil
}

func listBackups(paths config.Paths) error {
	registry, err := paths.LoadRegistry()
	if err != nil {
		return err
	}

	if len(registry.Backups) == 0 {
		fmt.Fprintln(stdout, "No backups registered.")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("NAME", "PATH")
	for name, path := range registry.All() {
		table.AddRow(name, path)
	}
	fmt.Fprintln(stdout, table)
	return nil
}

func registerBackup(paths config.Paths, name, path string) error {
	abs, err := config.ExpandPath(path)
	if err != nil {
		return err
	}

	err = paths.UpdateRegistry(func(registry *config.Registry) error {
		return registry.Register(name, abs)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Registered %s as %q.\n", abs, name)
	return nil
}
