package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/username/ledgervault/src/config"
	"github.com/username/ledgervault/src/services"
)

func newHistoryCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the import audit trail, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				storePath = config.Cfg.DatabasePath
			}

			importService := services.NewImportService(storePath, config.Cfg.ImportHistoryRetention, nil)
			records, err := importService.GetImportHistory()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no imports recorded")
				return nil
			}

			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  source=%s  +%d ~%d -%d ^%d\n",
					rec.CreatedAt.Format(time.RFC3339), rec.ID, rec.SourceHash,
					rec.ChangeCounts.Created, rec.ChangeCounts.Modified,
					rec.ChangeCounts.Orphaned, rec.ChangeCounts.Restored)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "store path (defaults to DATABASE_PATH)")
	return cmd
}
