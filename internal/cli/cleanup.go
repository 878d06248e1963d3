package cli

import (
	"github.com/spf13/cobra"

	"github.com/merchantlabs/backoffice/internal/app"
)

func newCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete processed outbox messages older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunCleanup(cmd.Context(), days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (defaults to OUTBOX_RETENTION_DAYS)")

	return cmd
}
