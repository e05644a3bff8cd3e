package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/username/ledgervault/src/config"
	"github.com/username/ledgervault/src/services"
)

func newImportCommand() *cobra.Command {
	var storePath string
	var source string

	cmd := &cobra.Command{
		Use:   "import <ledger-file>",
		Short: "Reimport a ledger export into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				storePath = config.Cfg.DatabasePath
			}
			if source == "" {
				source = config.Cfg.DefaultImportSource
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening ledger file: %w", err)
			}
			defer file.Close()

			importService := services.NewImportService(storePath, config.Cfg.ImportHistoryRetention, nil)
			result, err := importService.ProcessImport(file, source)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Import complete: %d created, %d modified, %d orphaned, %d restored\n",
				result.Counts.Created, result.Counts.Modified,
				result.Counts.Orphaned, result.Counts.Restored)
			for _, warning := range result.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "store path (defaults to DATABASE_PATH)")
	cmd.Flags().StringVar(&source, "source", "", "ledger export format (defaults to DEFAULT_IMPORT_SOURCE)")
	return cmd
}
