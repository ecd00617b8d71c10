package config

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/smartsync/cmd/util"
	"github.com/sidkik/smartsync/pkg/config"
)

// Mocked for unit testing.
var (
	stdout   io.Writer = os.Stdout
	getPaths           = util.GetPaths
)

// New creates a new `config` command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage backup configurations and the registry",
	}
	cmd.AddCommand(newBackupsCommand(), newRegistryCommand())
	return cmd
}

// resolveBackup finds the configuration that `ref` refers to. `ref` may be a
// path or the name of a registered backup.
func resolveBackup(cmd *cobra.Command, ref string) (string, error) {
	paths, err := getPaths(cmd)
	if err != nil {
		return "", err
	}
	return paths.ResolveBackup(ref)
}

// expandPaths makes every path in `paths` absolute, so that the stored
// configuration doesn't depend on the directory it was edited from.
func expandPaths(paths ...string) ([]string, error) {
	var expanded []string
	for _, path := range paths {
		abs, err := config.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, abs)
	}
	return expanded, nil
}
