package commands

import (
	"github.com/spf13/cobra"

	"github.com/username/ledgervault/src/config"
	"github.com/username/ledgervault/src/logger"
)

// NewRootCommand creates the root CLI command with all subcommands
// registered. Config and logging are initialized once for every subcommand.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgervault",
		Short: "Reimport-safe personal finance ledger store",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			logger.InitLogger(config.Cfg.LogLevel)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
