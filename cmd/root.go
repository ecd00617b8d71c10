package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/smartsync/cmd/backup"
	configCmd "github.com/sidkik/smartsync/cmd/config"
	"github.com/sidkik/smartsync/cmd/util"
	"github.com/sidkik/smartsync/cmd/version"
	"github.com/sidkik/smartsync/pkg/config"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "SMARTSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "smartsync",
		Short:        "Back up directories into destinations on each of your devices",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String(util.RegistryFlag, "",
		"The path to the registry of named backups. Defaults to $"+
			config.RegistryPathEnvKey+", then "+config.DefaultRegistryPath+".")
	rootCmd.AddCommand(
		backup.New(),
		configCmd.New(),
		version.New(),
	)
	return rootCmd
}
