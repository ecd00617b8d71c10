package util

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/smartsync/pkg/config"
)

// RegistryFlag is the persistent flag that overrides the registry location.
const RegistryFlag = "registry"

// GetPaths returns the paths `cmd` should use, honoring the registry flag if
// it was set on any parent command.
func GetPaths(cmd *cobra.Command) (config.Paths, error) {
	// The flag only exists when the command is attached to the root command.
	var override string
	if flag := cmd.Flag(RegistryFlag); flag != nil {
		override = flag.Value.String()
	}
	return config.DefaultPaths(override)
}
